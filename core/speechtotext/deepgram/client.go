// Package deepgram implements streaming transcription over Deepgram's listen
// websocket API.
package deepgram

import (
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type TranscriptionClient struct {
	apiKey string

	connMu sync.Mutex
	conn   *websocket.Conn

	lastMsgTs time.Time

	stateMu               sync.Mutex
	accumulatedTranscript string
	unendedSegment        bool
	utteranceID           string
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		if apiKey != "" {
			c.apiKey = apiKey
		}
	}
}

func NewTranscriptionClient(opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey: os.Getenv("DEEPGRAM_API_KEY"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}
