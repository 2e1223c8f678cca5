package pipeline

import (
	"context"

	"github.com/voxflow/voxflow-core/core/audio"
	"github.com/voxflow/voxflow-core/core/frames"
	"github.com/voxflow/voxflow-core/core/transport"
)

// transportInputStage turns audio arriving from the transport into frames.
// It sits at the head of the chain, so frames queued on the task interleave
// with captured audio in arrival order.
type transportInputStage struct {
	transport transport.Transport
	encoding  audio.EncodingInfo
}

func newTransportInputStage(t transport.Transport, encoding audio.EncodingInfo) *transportInputStage {
	return &transportInputStage{transport: t, encoding: encoding}
}

func (s *transportInputStage) Name() string { return "transport-input" }

func (s *transportInputStage) Start(_ context.Context, emit func(frames.Frame)) error {
	s.transport.OnAudioReceived(func(chunk []byte) {
		emit(frames.NewAudioChunk(chunk, s.encoding))
	})
	return nil
}

func (s *transportInputStage) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	if !frames.IsControl(frame) {
		emit(frame)
	}
	return nil
}

// transportOutputStage delivers synthesized audio to the transport, dropping
// audio whose turn has been superseded. It is the stage that knows when the
// assistant audibly starts speaking.
type transportOutputStage struct {
	transport transport.Transport
	turns     *turnTaking

	// speakingTurn is the last turn whose audio reached the transport, used
	// to report the start of each assistant turn exactly once.
	speakingTurn int64
	spoke        bool
}

func newTransportOutputStage(t transport.Transport, turns *turnTaking) *transportOutputStage {
	return &transportOutputStage{transport: t, turns: turns}
}

func (s *transportOutputStage) Name() string { return "transport-output" }

func (s *transportOutputStage) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.SynthesizedAudio:
		if frame.Turn() != s.turns.CurrentTurn() {
			// Stale audio from an interrupted turn.
			return nil
		}

		if !s.spoke || s.speakingTurn != frame.Turn() {
			s.spoke = true
			s.speakingTurn = frame.Turn()
			s.turns.OnAssistantSpeechStarted()
		}

		if err := s.transport.SendAudio(frame.Audio()); err != nil {
			return CapabilityError{Capability: "transport", Err: err, Fatal: false}
		}
		emit(frame)

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}
