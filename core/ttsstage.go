package pipeline

import (
	"context"
	"sync"

	"github.com/voxflow/voxflow-core/core/audio"
	"github.com/voxflow/voxflow-core/core/frames"
	"github.com/voxflow/voxflow-core/core/texttospeech"
)

// ttsStage streams response text into a speech generator and emits the
// synthesized audio tagged with the turn it belongs to. One generator serves
// one assistant turn; an interruption cancels it mid-stream and the next turn
// opens a fresh one.
type ttsStage struct {
	synthesizer TextToSpeech
	turns       *turnTaking
	encoding    audio.EncodingInfo

	emit func(frames.Frame)

	mu        sync.Mutex
	generator texttospeech.SpeechGenerator
	genTurn   int64
}

func newTTSStage(synthesizer TextToSpeech, turns *turnTaking, encoding audio.EncodingInfo) *ttsStage {
	return &ttsStage{synthesizer: synthesizer, turns: turns, encoding: encoding}
}

func (s *ttsStage) Name() string { return "tts" }

func (s *ttsStage) Start(_ context.Context, emit func(frames.Frame)) error {
	s.emit = emit
	return nil
}

func (s *ttsStage) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generator != nil {
		s.generator.Cancel()
		s.generator = nil
	}
}

func (s *ttsStage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generator != nil {
		err := s.generator.Close()
		s.generator = nil
		return err
	}
	return nil
}

func (s *ttsStage) Process(ctx context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	switch frame := frame.(type) {
	case frames.LLMTextDelta:
		if frame.Turn() != s.turns.CurrentTurn() {
			// The turn this delta belongs to was interrupted while the delta
			// sat in the queue.
			return nil
		}
		generator, err := s.currentGenerator(ctx, frame.Turn())
		if err != nil {
			return CapabilityError{Capability: "text-to-speech", Err: err, Fatal: false}
		}
		if err := generator.SendText(frame.Delta()); err != nil {
			return CapabilityError{Capability: "text-to-speech", Err: err, Fatal: false}
		}

	case frames.LLMTurnComplete:
		if frame.Turn() != s.turns.CurrentTurn() {
			return nil
		}

		s.mu.Lock()
		generator := s.generator
		s.generator = nil
		s.mu.Unlock()

		if generator == nil {
			// The model produced no speakable text; the turn is over as soon
			// as it completed.
			s.turns.OnAssistantTurnComplete()
			emit(frame)
			return nil
		}
		if err := generator.EndOfText(); err != nil {
			return CapabilityError{Capability: "text-to-speech", Err: err, Fatal: false}
		}

	case frames.Interrupt:
		s.Interrupt()

	default:
		if !frames.IsControl(frame) {
			emit(frame)
		}
	}

	return nil
}

// currentGenerator returns the generator serving the given turn, opening one
// on first use. A generator left over from a superseded turn is cancelled.
func (s *ttsStage) currentGenerator(ctx context.Context, turn int64) (texttospeech.SpeechGenerator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generator != nil && s.genTurn == turn {
		return s.generator, nil
	}
	if s.generator != nil {
		s.generator.Cancel()
		s.generator = nil
	}

	generator, err := s.synthesizer.NewSpeechGenerator(ctx,
		texttospeech.WithEncodingInfo(s.encoding),
		texttospeech.WithSpeechAudioCallback(func(chunk []byte) {
			s.emit(frames.NewSynthesizedAudio(chunk, turn))
		}),
		texttospeech.WithSpeechEndedCallback(func() {
			if s.turns.CurrentTurn() == turn {
				s.turns.OnAssistantTurnComplete()
				s.emit(frames.NewLLMTurnComplete(turn))
			}
		}),
		texttospeech.WithErrorCallback(func(err error) {
			s.emit(frames.NewError(s.Name(), CapabilityError{Capability: "text-to-speech", Err: err, Fatal: false}, false))
		}),
	)
	if err != nil {
		return nil, err
	}

	s.generator = generator
	s.genTurn = turn
	return generator, nil
}
