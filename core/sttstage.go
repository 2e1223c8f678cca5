package pipeline

import (
	"context"

	"github.com/voxflow/voxflow-core/core/frames"
	"github.com/voxflow/voxflow-core/core/speechtotext"
)

// sttStage forwards input audio to the transcriber and turns its asynchronous
// transcript callbacks back into frames. Raw audio ends its journey here;
// everything downstream works with text.
type sttStage struct {
	transcriber SpeechToText
	encoding    speechtotext.TranscriptionOption
}

func newSTTStage(transcriber SpeechToText, encoding speechtotext.TranscriptionOption) *sttStage {
	return &sttStage{transcriber: transcriber, encoding: encoding}
}

func (s *sttStage) Name() string { return "stt" }

func (s *sttStage) Start(ctx context.Context, emit func(frames.Frame)) error {
	go func() {
		err := s.transcriber.Transcribe(ctx,
			s.encoding,
			speechtotext.WithPartialTranscriptCallback(func(transcript string, confidence float64, utteranceID string) {
				emit(frames.NewTranscriptPartial(transcript, confidence, utteranceID))
			}),
			speechtotext.WithFinalTranscriptCallback(func(transcript string, utteranceID string) {
				emit(frames.NewTranscriptFinal(transcript, utteranceID))
			}),
			speechtotext.WithErrorCallback(func(err error) {
				emit(frames.NewError(s.Name(), CapabilityError{Capability: "speech-to-text", Err: err, Fatal: true}, true))
			}),
		)
		if err != nil && ctx.Err() == nil {
			emit(frames.NewError(s.Name(), CapabilityError{Capability: "speech-to-text", Err: err, Fatal: true}, true))
		}
	}()

	return nil
}

func (s *sttStage) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.AudioChunk:
		if err := s.transcriber.SendAudio(frame.Audio()); err != nil {
			return CapabilityError{Capability: "speech-to-text", Err: err, Fatal: false}
		}

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}
