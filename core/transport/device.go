package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxflow/voxflow-core/core/audio"
)

// DeviceClient is the slice of a local audio client the transport needs,
// satisfied by the miniaudio and portaudio clients.
type DeviceClient interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	SendAudio(audio []byte) error
	ClearBuffer()
	EncodingInfo() audio.EncodingInfo
}

// Device is a transport over the local microphone and speakers. The local
// user is reported as the only participant.
type Device struct {
	client DeviceClient

	mu     sync.Mutex
	joined bool

	onAudioReceived     func([]byte)
	onParticipantJoined func(Participant)
	onParticipantLeft   func(Participant)
}

func NewDevice(client DeviceClient) (*Device, error) {
	if client == nil {
		return nil, fmt.Errorf("an audio device client is required")
	}

	return &Device{client: client}, nil
}

func (d *Device) Join(ctx context.Context) error {
	d.mu.Lock()
	if d.joined {
		d.mu.Unlock()
		return nil
	}
	d.joined = true
	onAudio := d.onAudioReceived
	onJoined := d.onParticipantJoined
	d.mu.Unlock()

	if err := d.client.StartCapture(ctx, func(chunk []byte) {
		if onAudio != nil {
			onAudio(chunk)
		}
	}); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	if onJoined != nil {
		onJoined(localParticipant)
	}

	return nil
}

func (d *Device) Leave() error {
	d.mu.Lock()
	if !d.joined {
		d.mu.Unlock()
		return nil
	}
	d.joined = false
	onLeft := d.onParticipantLeft
	d.mu.Unlock()

	err := d.client.StopCapture()
	d.client.ClearBuffer()

	if onLeft != nil {
		onLeft(localParticipant)
	}

	return err
}

func (d *Device) SendAudio(audio []byte) error {
	return d.client.SendAudio(audio)
}

func (d *Device) OnAudioReceived(callback func([]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAudioReceived = callback
}

func (d *Device) OnParticipantJoined(callback func(Participant)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onParticipantJoined = callback
}

func (d *Device) OnParticipantLeft(callback func(Participant)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onParticipantLeft = callback
}

// EncodingInfo reports the encoding the underlying device produces and
// expects.
func (d *Device) EncodingInfo() audio.EncodingInfo {
	return d.client.EncodingInfo()
}

var localParticipant = Participant{ID: "local", Name: "Local user"}
