// Package texttospeech defines the synthesis contract implemented by
// text-to-speech providers.
package texttospeech

import "github.com/voxflow/voxflow-core/core/audio"

type SynthesisOptions struct {
	// SpeechAudioCallback is called when the provider produces audio.
	SpeechAudioCallback func(audio []byte)
	// SpeechMarkCallback is called when the provider has produced speech up
	// to the marked text. Each mark is called once.
	SpeechMarkCallback func(string)
	// SpeechEndedCallback is called when the provider has finished producing
	// all requested speech.
	SpeechEndedCallback func()
	// ErrorCallback is called when the provider encounters an error, which
	// usually means generation has been cancelled.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithSpeechAudioCallback(callback func([]byte)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.SpeechAudioCallback = callback
	}
}

func WithSpeechMarkCallback(callback func(string)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.SpeechMarkCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(error)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// SpeechGenerator is a single synthesis stream.
type SpeechGenerator interface {
	// SendText sends text to the generator. Speech is guaranteed to be
	// generated in the order text is sent.
	//
	// SendText will error if EndOfText, Cancel or Close has been called.
	SendText(string) error
	// Mark marks the current point in the text. The mark callback fires
	// after the text sent up to the mark has been generated.
	//
	// Mark will error if EndOfText, Cancel or Close has been called.
	Mark() error
	// EndOfText signals that no more text will be sent. The generator closes
	// itself after all remaining speech has been generated.
	//
	// EndOfText will error if Cancel or Close has been called. Repeated
	// calls are ignored.
	EndOfText() error
	// Cancel immediately stops further speech generation and closes the
	// generator.
	//
	// Cancel will error if Close has been called. Repeated calls are
	// ignored.
	Cancel() error
	// Close immediately closes the generator. No more speech is produced
	// after this call. Repeated calls are ignored.
	Close() error
}
