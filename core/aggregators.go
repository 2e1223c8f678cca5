package pipeline

import (
	"context"
	"strings"

	"github.com/voxflow/voxflow-core/core/frames"
)

// userResponseAggregator collapses the transcriber's stream of hypotheses
// into one utterance text. Partials overwrite each other per utterance; the
// final transcript settles it. An interruption wipes whatever was pending.
type userResponseAggregator struct {
	turns *turnTaking

	partials  map[string]string
	finalized map[string]bool
}

func newUserResponseAggregator(turns *turnTaking) *userResponseAggregator {
	return &userResponseAggregator{
		turns:     turns,
		partials:  map[string]string{},
		finalized: map[string]bool{},
	}
}

func (s *userResponseAggregator) Name() string { return "user-response-aggregator" }

func (s *userResponseAggregator) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.TranscriptPartial:
		s.partials[frame.UtteranceID()] = frame.Transcript()
		emit(frame)

	case frames.TranscriptFinal:
		if s.finalized[frame.UtteranceID()] {
			// Duplicate final for an utterance that already closed.
			return nil
		}

		transcript := strings.TrimSpace(frame.Transcript())
		if transcript == "" {
			transcript = strings.TrimSpace(s.partials[frame.UtteranceID()])
		}
		delete(s.partials, frame.UtteranceID())
		if transcript == "" {
			// Nothing was ever recognized; the utterance never happened.
			return nil
		}

		s.finalized[frame.UtteranceID()] = true
		s.turns.OnTranscriptFinal()
		emit(frames.NewTranscriptFinal(transcript, frame.UtteranceID()))

	case frames.Interrupt:
		clear(s.partials)

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}

// assistantResponseAggregator assembles the streamed response text while
// letting the deltas flow through to synthesis. The assembled text is only
// published once the stream completes; an interrupted stream publishes
// nothing.
type assistantResponseAggregator struct {
	response strings.Builder
}

func newAssistantResponseAggregator() *assistantResponseAggregator {
	return &assistantResponseAggregator{}
}

func (s *assistantResponseAggregator) Name() string { return "assistant-response-aggregator" }

func (s *assistantResponseAggregator) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.LLMTextDelta:
		s.response.WriteString(frame.Delta())
		emit(frame)

	case frames.LLMTurnComplete:
		response := strings.TrimSpace(s.response.String())
		s.response.Reset()
		if response != "" {
			emit(frames.NewAssistantResponse(response))
		}
		emit(frame)

	case frames.Interrupt:
		s.response.Reset()

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}
