// Package speechtotext defines the transcription contract implemented by
// speech-to-text providers.
package speechtotext

import "github.com/voxflow/voxflow-core/core/audio"

type TranscriptionOptions struct {
	// PartialTranscriptCallback is called with interim hypotheses. A later
	// call with the same utterance ID supersedes the previous one entirely.
	PartialTranscriptCallback func(transcript string, confidence float64, utteranceID string)
	// FinalTranscriptCallback is called once per utterance when the provider
	// commits to a transcript.
	FinalTranscriptCallback func(transcript string, utteranceID string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	// ErrorCallback is called when the provider connection fails. The
	// transcriber is unusable afterwards.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithPartialTranscriptCallback(callback func(transcript string, confidence float64, utteranceID string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptCallback = callback
	}
}

func WithFinalTranscriptCallback(callback func(transcript string, utteranceID string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.FinalTranscriptCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
