package pipeline

import (
	"context"
	"testing"

	"github.com/voxflow/voxflow-core/core/frames"
)

func TestUserAggregatorFinalizesUtterance(t *testing.T) {
	turns := newTurnTaking(true)
	aggregator := newUserResponseAggregator(turns)

	var emitted []frames.Frame
	emit := func(frame frames.Frame) { emitted = append(emitted, frame) }

	ctx := context.Background()
	aggregator.Process(ctx, frames.NewTranscriptPartial("hello", 0.8, "utt-1"), emit)
	aggregator.Process(ctx, frames.NewTranscriptPartial("hello there", 0.9, "utt-1"), emit)
	aggregator.Process(ctx, frames.NewTranscriptFinal("hello there", "utt-1"), emit)

	if len(emitted) != 3 {
		t.Fatalf("expected 2 partials and 1 final, got %d frames", len(emitted))
	}
	final, ok := emitted[2].(frames.TranscriptFinal)
	if !ok {
		t.Fatalf("expected final transcript frame, got %T", emitted[2])
	}
	if final.Transcript() != "hello there" {
		t.Fatalf("expected final transcript %q, got %q", "hello there", final.Transcript())
	}
	if got := turns.State(); got != TurnProcessing {
		t.Fatalf("expected the final to open a turn, state is %q", got)
	}
}

func TestUserAggregatorIgnoresDuplicateFinals(t *testing.T) {
	aggregator := newUserResponseAggregator(newTurnTaking(true))

	var emitted []frames.Frame
	emit := func(frame frames.Frame) { emitted = append(emitted, frame) }

	ctx := context.Background()
	aggregator.Process(ctx, frames.NewTranscriptFinal("hello", "utt-1"), emit)
	aggregator.Process(ctx, frames.NewTranscriptFinal("hello", "utt-1"), emit)

	if len(emitted) != 1 {
		t.Fatalf("expected a single final, got %d frames", len(emitted))
	}
}

func TestUserAggregatorFallsBackToLastPartial(t *testing.T) {
	aggregator := newUserResponseAggregator(newTurnTaking(true))

	var emitted []frames.Frame
	emit := func(frame frames.Frame) { emitted = append(emitted, frame) }

	ctx := context.Background()
	aggregator.Process(ctx, frames.NewTranscriptPartial("wait for me", 0.7, "utt-1"), emit)
	aggregator.Process(ctx, frames.NewTranscriptFinal("", "utt-1"), emit)

	final, ok := emitted[len(emitted)-1].(frames.TranscriptFinal)
	if !ok {
		t.Fatalf("expected final transcript frame, got %T", emitted[len(emitted)-1])
	}
	if final.Transcript() != "wait for me" {
		t.Fatalf("expected fallback to last partial, got %q", final.Transcript())
	}
}

func TestUserAggregatorDropsEmptyUtterance(t *testing.T) {
	turns := newTurnTaking(true)
	aggregator := newUserResponseAggregator(turns)

	var emitted []frames.Frame
	emit := func(frame frames.Frame) { emitted = append(emitted, frame) }

	aggregator.Process(context.Background(), frames.NewTranscriptFinal("  ", "utt-1"), emit)

	if len(emitted) != 0 {
		t.Fatalf("expected no frames for an empty utterance, got %d", len(emitted))
	}
	if got := turns.State(); got != TurnIdle {
		t.Fatalf("expected no turn to open for an empty utterance, state is %q", got)
	}
}

func TestUserAggregatorClearsPartialsOnInterrupt(t *testing.T) {
	aggregator := newUserResponseAggregator(newTurnTaking(true))

	var emitted []frames.Frame
	emit := func(frame frames.Frame) { emitted = append(emitted, frame) }

	ctx := context.Background()
	aggregator.Process(ctx, frames.NewTranscriptPartial("half a tho", 0.6, "utt-1"), emit)
	aggregator.Process(ctx, frames.NewInterrupt(), emit)
	aggregator.Process(ctx, frames.NewTranscriptFinal("", "utt-1"), emit)

	if len(emitted) != 1 {
		t.Fatalf("expected the wiped partial not to resurface, got %d frames", len(emitted))
	}
}

func TestAssistantAggregatorPublishesResponse(t *testing.T) {
	aggregator := newAssistantResponseAggregator()

	var emitted []frames.Frame
	emit := func(frame frames.Frame) { emitted = append(emitted, frame) }

	ctx := context.Background()
	aggregator.Process(ctx, frames.NewLLMTextDelta("Hi! ", 0), emit)
	aggregator.Process(ctx, frames.NewLLMTextDelta("How can I help?", 0), emit)
	aggregator.Process(ctx, frames.NewLLMTurnComplete(0), emit)

	if len(emitted) != 4 {
		t.Fatalf("expected 2 deltas, a response and the completion, got %d frames", len(emitted))
	}
	response, ok := emitted[2].(frames.AssistantResponse)
	if !ok {
		t.Fatalf("expected assistant response frame, got %T", emitted[2])
	}
	if response.Text() != "Hi! How can I help?" {
		t.Fatalf("unexpected assembled response %q", response.Text())
	}
	if _, ok := emitted[3].(frames.LLMTurnComplete); !ok {
		t.Fatalf("expected the completion to be forwarded after the response, got %T", emitted[3])
	}
}

func TestAssistantAggregatorPublishesNothingWhenInterrupted(t *testing.T) {
	aggregator := newAssistantResponseAggregator()

	var emitted []frames.Frame
	emit := func(frame frames.Frame) { emitted = append(emitted, frame) }

	ctx := context.Background()
	aggregator.Process(ctx, frames.NewLLMTextDelta("Hi! How can", 0), emit)
	aggregator.Process(ctx, frames.NewInterrupt(), emit)
	aggregator.Process(ctx, frames.NewLLMTurnComplete(1), emit)

	for _, frame := range emitted {
		if _, ok := frame.(frames.AssistantResponse); ok {
			t.Fatalf("expected no response for an interrupted stream")
		}
	}
}
