package deepgram

import (
	"context"
	"fmt"
	"sync"
	"testing"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"

	"github.com/voxflow/voxflow-core/core/speechtotext"
)

type transcriptRecorder struct {
	mu          sync.Mutex
	partials    []string
	partialIDs  []string
	confidences []float64
	finals      []string
	finalIDs    []string
	started     int
	ended       int
}

func (r *transcriptRecorder) options() speechtotext.TranscriptionOptions {
	return speechtotext.TranscriptionOptions{
		PartialTranscriptCallback: func(transcript string, confidence float64, utteranceID string) {
			r.mu.Lock()
			r.partials = append(r.partials, transcript)
			r.confidences = append(r.confidences, confidence)
			r.partialIDs = append(r.partialIDs, utteranceID)
			r.mu.Unlock()
		},
		FinalTranscriptCallback: func(transcript, utteranceID string) {
			r.mu.Lock()
			r.finals = append(r.finals, transcript)
			r.finalIDs = append(r.finalIDs, utteranceID)
			r.mu.Unlock()
		},
		SpeechStartedCallback: func() {
			r.mu.Lock()
			r.started++
			r.mu.Unlock()
		},
		SpeechEndedCallback: func() {
			r.mu.Lock()
			r.ended++
			r.mu.Unlock()
		},
	}
}

func resultsMessage(transcript string, confidence float64, isFinal, speechFinal bool) []byte {
	return fmt.Appendf(nil,
		`{"type":%q,"is_final":%t,"speech_final":%t,"channel":{"alternatives":[{"transcript":%q,"confidence":%f}]}}`,
		api.TypeMessageResponse, isFinal, speechFinal, transcript, confidence)
}

func TestProcessMessageAccumulatesHypothesesPerUtterance(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()
	ctx := context.Background()

	// Two interim revisions, then the confirmed segment that ends the speech.
	client.processMessage(ctx, resultsMessage("hello", 0.8, false, false), options)
	client.processMessage(ctx, resultsMessage("hello there", 0.9, false, false), options)
	client.processMessage(ctx, resultsMessage("hello there", 0.95, true, true), options)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	want := []string{"hello", "hello there", "hello there"}
	if len(recorder.partials) != len(want) {
		t.Fatalf("expected %d partials, got %v", len(want), recorder.partials)
	}
	for i := range want {
		if recorder.partials[i] != want[i] {
			t.Fatalf("expected partial %d to be %q, got %q", i, want[i], recorder.partials[i])
		}
	}
	for i, id := range recorder.partialIDs {
		if id == "" || id != recorder.partialIDs[0] {
			t.Fatalf("expected every partial to carry the same utterance id, got %v at %d", recorder.partialIDs, i)
		}
	}
	if recorder.confidences[0] != 0.8 {
		t.Fatalf("expected the provider confidence to pass through, got %v", recorder.confidences)
	}

	if len(recorder.finals) != 1 || recorder.finals[0] != "hello there" {
		t.Fatalf("expected one final %q, got %v", "hello there", recorder.finals)
	}
	if recorder.finalIDs[0] != recorder.partialIDs[0] {
		t.Fatalf("expected the final to carry the partials' utterance id")
	}
	if recorder.ended != 1 {
		t.Fatalf("expected one speech-ended notification, got %d", recorder.ended)
	}
}

func TestProcessMessageStartsNewUtteranceAfterFinal(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()
	ctx := context.Background()

	client.processMessage(ctx, resultsMessage("first utterance", 0.9, true, true), options)
	client.processMessage(ctx, resultsMessage("second", 0.9, false, false), options)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	if len(recorder.partialIDs) != 2 {
		t.Fatalf("expected two partials, got %v", recorder.partials)
	}
	if recorder.partialIDs[0] == recorder.partialIDs[1] {
		t.Fatalf("expected a fresh utterance id after the final, got %v", recorder.partialIDs)
	}
	if recorder.partials[1] != "second" {
		t.Fatalf("expected the new utterance to start clean, got %q", recorder.partials[1])
	}
}

func TestProcessMessageConcatenatesConfirmedSegments(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()
	ctx := context.Background()

	client.processMessage(ctx, resultsMessage("hello there", 0.9, true, false), options)
	client.processMessage(ctx, resultsMessage("nice to meet you", 0.9, true, true), options)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	if len(recorder.finals) != 1 || recorder.finals[0] != "hello there nice to meet you" {
		t.Fatalf("expected the confirmed segments joined into one final, got %v", recorder.finals)
	}
}

func TestProcessMessageUtteranceEndFallback(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()
	ctx := context.Background()

	speechStarted := fmt.Appendf(nil, `{"type":%q}`, api.TypeSpeechStartedResponse)
	utteranceEnd := fmt.Appendf(nil, `{"type":%q}`, api.TypeUtteranceEndResponse)

	client.processMessage(ctx, speechStarted, options)
	client.processMessage(ctx, resultsMessage("trailing words", 0.9, true, false), options)
	// No speech_final arrives; the utterance-end event closes the segment.
	client.processMessage(ctx, utteranceEnd, options)
	// A duplicate utterance end has nothing left to close.
	client.processMessage(ctx, utteranceEnd, options)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	if recorder.started != 1 {
		t.Fatalf("expected one speech-started notification, got %d", recorder.started)
	}
	if len(recorder.finals) != 1 || recorder.finals[0] != "trailing words" {
		t.Fatalf("expected one final from the utterance end, got %v", recorder.finals)
	}
	if recorder.ended != 1 {
		t.Fatalf("expected the duplicate utterance end to be ignored, got %d endings", recorder.ended)
	}
}

func TestProcessMessageDropsEmptyFinal(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()
	ctx := context.Background()

	// Speech detected but nothing transcribable in it.
	client.processMessage(ctx, resultsMessage("  ", 0.1, true, true), options)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	if len(recorder.finals) != 0 {
		t.Fatalf("expected no final for an empty transcript, got %v", recorder.finals)
	}
	if recorder.ended != 1 {
		t.Fatalf("expected the speech ending to still be reported, got %d", recorder.ended)
	}
}
