package pipeline

import (
	"context"

	"github.com/voxflow/voxflow-core/core/frames"
	"github.com/voxflow/voxflow-core/core/vad"
)

// vadStage runs incoming audio through the voice activity analyzer and
// surfaces debounced speech boundary frames ahead of the audio itself.
type vadStage struct {
	analyzer *vad.Analyzer
	turns    *turnTaking
}

func newVADStage(analyzer *vad.Analyzer, turns *turnTaking) *vadStage {
	return &vadStage{analyzer: analyzer, turns: turns}
}

func (s *vadStage) Name() string { return "vad" }

func (s *vadStage) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.AudioChunk:
		if event := s.analyzer.Observe(frame.Audio()); event != nil {
			switch event.Type {
			case vad.EventSpeechStarted:
				s.turns.OnUserSpeechStarted()
				emit(frames.NewSpeechStarted())
			case vad.EventSpeechStopped:
				s.turns.OnUserSpeechStopped()
				emit(frames.NewSpeechStopped())
			}
		}
		emit(frame)

	case frames.End:
		s.analyzer.Reset()

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}
