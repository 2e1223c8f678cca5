// Package deepgram implements streaming speech synthesis over Deepgram's
// speak websocket API.
package deepgram

import (
	"fmt"
	"os"
	"slices"
)

type deepgramVoice string

const (
	VoiceThalia    deepgramVoice = "aura-2-thalia-en"
	VoiceAndromeda deepgramVoice = "aura-2-andromeda-en"
	VoiceHelena    deepgramVoice = "aura-2-helena-en"
	VoiceApollo    deepgramVoice = "aura-2-apollo-en"
	VoiceArcas     deepgramVoice = "aura-2-arcas-en"
	VoiceOrpheus   deepgramVoice = "aura-2-orpheus-en"

	defaultVoice = VoiceThalia
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceThalia,
		VoiceAndromeda,
		VoiceHelena,
		VoiceApollo,
		VoiceArcas,
		VoiceOrpheus,
	}
}

type TextToSpeechClient struct {
	apiKey string
	voice  deepgramVoice
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) {
		if apiKey != "" {
			c.apiKey = apiKey
		}
	}
}

// WithVoice selects the synthesis voice. The voice has to be one of
// [GetAvailableVoices].
func WithVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) {
		c.voice = voice
	}
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		apiKey: os.Getenv("DEEPGRAM_API_KEY"),
		voice:  defaultVoice,
	}

	for _, opt := range opts {
		opt(client)
	}

	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice")
	}

	return client, nil
}
