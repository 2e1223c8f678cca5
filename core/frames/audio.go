package frames

import "github.com/voxflow/voxflow-core/core/audio"

// AudioChunk carries raw input audio captured from the transport.
type AudioChunk struct {
	Base
	audio    []byte
	encoding audio.EncodingInfo
}

func (f AudioChunk) Audio() []byte                { return f.audio }
func (f AudioChunk) Encoding() audio.EncodingInfo { return f.encoding }

func NewAudioChunk(chunk []byte, encoding audio.EncodingInfo) AudioChunk {
	return AudioChunk{Base: NewBase(KindAudioChunk), audio: chunk, encoding: encoding}
}

// SynthesizedAudio carries assistant audio produced by the TTS stage. Turn
// identifies the assistant turn the audio belongs to; frames from a turn that
// has been interrupted are stale and must never reach the output stage.
type SynthesizedAudio struct {
	Base
	audio []byte
	turn  int64
}

func (f SynthesizedAudio) Audio() []byte { return f.audio }
func (f SynthesizedAudio) Turn() int64   { return f.turn }

func NewSynthesizedAudio(chunk []byte, turn int64) SynthesizedAudio {
	return SynthesizedAudio{Base: NewBase(KindSynthesizedAudio), audio: chunk, turn: turn}
}

type SpeechStarted struct{ Base }

func (f SpeechStarted) String() string { return "Speech Started" }

func NewSpeechStarted() SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted)}
}

type SpeechStopped struct{ Base }

func (f SpeechStopped) String() string { return "Speech Stopped" }

func NewSpeechStopped() SpeechStopped {
	return SpeechStopped{Base: NewBase(KindSpeechStopped)}
}
