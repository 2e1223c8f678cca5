package pipeline

import (
	"context"

	"github.com/voxflow/voxflow-core/core/audio"
	"github.com/voxflow/voxflow-core/core/llms"
	"github.com/voxflow/voxflow-core/core/speechtotext"
	"github.com/voxflow/voxflow-core/core/texttospeech"
	"github.com/voxflow/voxflow-core/core/transport"
	"github.com/voxflow/voxflow-core/core/vad"
)

// LLM is a streaming language model backend.
type LLM interface {
	PromptWithStream(ctx context.Context, prompt *string, opts ...llms.PromptOption) llms.Stream
}

// SpeechToText is a streaming transcription backend. Transcribe blocks for
// the lifetime of the provider connection; audio is fed through SendAudio.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

// TextToSpeech is a synthesis backend that opens one speech generator per
// assistant turn.
type TextToSpeech interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.SynthesisOption) (texttospeech.SpeechGenerator, error)
}

type TaskOption func(*taskConfig)

type taskConfig struct {
	transport   transport.Transport
	transcriber SpeechToText
	model       LLM
	synthesizer TextToSpeech

	vadScorer vad.Scorer
	vadParams vad.Params

	systemPrompt string
	tools        []llms.Tool
	encoding     audio.EncodingInfo

	callbacks taskCallbacks
}

type taskCallbacks struct {
	onStateChanged         func(TurnState)
	onPartialTranscription func(string)
	onTranscription        func(string)
	onResponseDelta        func(string)
	onResponse             func(string)
	onResponseEnd          func()
	onAudio                func([]byte)
	onError                func(error)
	onParticipantJoined    func(transport.Participant)
	onParticipantLeft      func(transport.Participant)
}

func newTaskConfig() taskConfig {
	return taskConfig{
		vadParams: vad.Params{
			StartDuration: vad.DefaultStartDuration,
			StopDuration:  vad.DefaultStopDuration,
			Threshold:     vad.DefaultThreshold,
		},
		encoding: audio.GetDefaultEncodingInfo(),
	}
}

func WithTransport(t transport.Transport) TaskOption {
	return func(c *taskConfig) { c.transport = t }
}

func WithTranscriber(client SpeechToText) TaskOption {
	return func(c *taskConfig) { c.transcriber = client }
}

func WithStreamingLLM(client LLM) TaskOption {
	return func(c *taskConfig) { c.model = client }
}

func WithSynthesizer(client TextToSpeech) TaskOption {
	return func(c *taskConfig) { c.synthesizer = client }
}

// WithVADScorer enables the built-in voice activity stage with the given
// probability model. Without it, speech boundaries come only from the
// transcriber.
func WithVADScorer(scorer vad.Scorer) TaskOption {
	return func(c *taskConfig) { c.vadScorer = scorer }
}

func WithVADParams(params vad.Params) TaskOption {
	return func(c *taskConfig) {
		if params.StartDuration > 0 {
			c.vadParams.StartDuration = params.StartDuration
		}
		if params.StopDuration > 0 {
			c.vadParams.StopDuration = params.StopDuration
		}
		if params.Threshold > 0 {
			c.vadParams.Threshold = params.Threshold
		}
	}
}

func WithSystemPrompt(prompt string) TaskOption {
	return func(c *taskConfig) { c.systemPrompt = prompt }
}

// WithTools makes tools available to the model during generation. Tool calls
// are executed between generation passes and their results fed back before
// the response is streamed on.
func WithTools(tools ...llms.Tool) TaskOption {
	return func(c *taskConfig) { c.tools = append(c.tools, tools...) }
}

func WithEncodingInfo(encoding audio.EncodingInfo) TaskOption {
	return func(c *taskConfig) {
		if !encoding.IsZero() {
			c.encoding = encoding
		}
	}
}

// WithStateChangedCallback reports turn state transitions in order.
func WithStateChangedCallback(callback func(TurnState)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onStateChanged = callback }
}

// WithPartialTranscriptionCallback reports interim user transcripts. A later
// call supersedes the previous one.
func WithPartialTranscriptionCallback(callback func(string)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onPartialTranscription = callback }
}

// WithTranscriptionCallback reports each finalized user utterance.
func WithTranscriptionCallback(callback func(string)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onTranscription = callback }
}

// WithResponseDeltaCallback reports each streamed span of response text.
func WithResponseDeltaCallback(callback func(string)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onResponseDelta = callback }
}

// WithResponseCallback reports the fully assembled assistant response.
func WithResponseCallback(callback func(string)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onResponse = callback }
}

// WithResponseEndCallback reports the end of the assistant's turn, after all
// of its audio has been delivered.
func WithResponseEndCallback(callback func()) TaskOption {
	return func(c *taskConfig) { c.callbacks.onResponseEnd = callback }
}

// WithAudioCallback reports synthesized audio as it is delivered.
func WithAudioCallback(callback func([]byte)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onAudio = callback }
}

// WithErrorCallback reports stage and capability failures surfaced by the
// pipeline.
func WithErrorCallback(callback func(error)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onError = callback }
}

func WithParticipantJoinedCallback(callback func(transport.Participant)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onParticipantJoined = callback }
}

func WithParticipantLeftCallback(callback func(transport.Participant)) TaskOption {
	return func(c *taskConfig) { c.callbacks.onParticipantLeft = callback }
}
