package frames

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAudioChunk        Kind = "audio_chunk"
	KindSpeechStarted     Kind = "speech_started"
	KindSpeechStopped     Kind = "speech_stopped"
	KindTranscriptPartial Kind = "transcript_partial"
	KindTranscriptFinal   Kind = "transcript_final"
	KindLLMRun            Kind = "llm_run"
	KindLLMTextDelta      Kind = "llm_text_delta"
	KindLLMTurnComplete   Kind = "llm_turn_complete"
	KindAssistantResponse Kind = "assistant_response"
	KindSynthesizedAudio  Kind = "synthesized_audio"
	KindStart             Kind = "control_start"
	KindInterrupt         Kind = "control_interrupt"
	KindEnd               Kind = "control_end"
	KindError             Kind = "control_error"
)

type Frame interface {
	ID() string
	Kind() Kind
	Timestamp() time.Time
}

// ControlFrame marks frames that must traverse every stage of a pipeline.
type ControlFrame interface {
	Frame
	isControl()
}

// IsControl reports whether the frame is a control frame.
func IsControl(frame Frame) bool {
	_, ok := frame.(ControlFrame)
	return ok
}

type Base struct {
	id        string
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{id: uuid.NewString(), kind: kind, timestamp: time.Now()}
}

func (b Base) ID() string           { return b.id }
func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }
