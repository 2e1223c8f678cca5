// Package miniaudio provides local microphone capture and speaker playback
// through the miniaudio library.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/voxflow/voxflow-core/core/audio"
)

type Client struct {
	// audioContext is only kept to uninitialize it on Close.
	audioContext *malgo.AllocatedContext
	encoding     audio.EncodingInfo

	playback playbackDevice
	capture  captureDevice
}

type ClientOption func(*Client)

// WithEncodingInfo sets the encoding both devices are opened with. Defaults
// to 16kHz mono linear16.
func WithEncodingInfo(encoding audio.EncodingInfo) ClientOption {
	return func(c *Client) {
		c.encoding = encoding
	}
}

// NewClient opens the default capture and playback devices. Playback starts
// immediately; capture waits for StartCapture.
func NewClient(opts ...ClientOption) (*Client, error) {
	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := &Client{
		audioContext: audioContext,
		encoding:     audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if err := client.playback.init(audioContext, client.encoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback: %w", err)
	}
	if err := client.playback.start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}
	if err := client.capture.init(audioContext, client.encoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture: %w", err)
	}

	return client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(chunk []byte)) error {
	return c.capture.start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.capture.stop()
}

func (c *Client) StartPlayback(_ context.Context) error {
	return c.playback.start()
}

func (c *Client) StopPlayback() error {
	return c.playback.stop()
}

func (c *Client) SendAudio(chunk []byte) error {
	return c.playback.sendAudio(chunk)
}

func (c *Client) ClearBuffer() {
	c.playback.clearBuffer()
}

func (c *Client) AwaitMark() error {
	return c.playback.awaitMark()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

func (c *Client) Close() {
	c.capture.uninit()
	c.playback.uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func malgoFormat(encoding audio.EncodingInfo) (malgo.FormatType, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		return malgo.FormatS16, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("unsupported device encoding %q", encoding.Format.Name())
	}
}
