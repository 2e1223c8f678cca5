package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxflow/voxflow-core/core/audio"
)

// captureDevice wraps a malgo capture device and hands raw chunks to the
// registered callback from the device's data thread.
type captureDevice struct {
	mu      sync.Mutex
	device  *malgo.Device
	onAudio func(chunk []byte)

	bytesPerFrame int
}

func (d *captureDevice) init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	format, err := malgoFormat(encoding)
	if err != nil {
		return err
	}
	d.bytesPerFrame = malgo.SampleSizeInBytes(format) * encoding.Channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(encoding.Channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	// 30ms periods keep the voice activity analyzer responsive.
	config.PeriodSizeInFrames = uint32(encoding.SampleRate * 30 / 1000)
	config.Periods = 3

	d.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * d.bytesPerFrame
			if n == 0 || len(input) < n {
				return
			}
			d.mu.Lock()
			onAudio := d.onAudio
			d.mu.Unlock()
			if onAudio != nil {
				onAudio(input[:n])
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (d *captureDevice) start(onAudio func(chunk []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return fmt.Errorf("capture device not initialized")
	}
	if d.device.IsStarted() {
		return nil
	}

	d.onAudio = onAudio
	if err := d.device.Start(); err != nil {
		d.onAudio = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

func (d *captureDevice) stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return fmt.Errorf("capture device not initialized")
	}
	if !d.device.IsStarted() {
		return nil
	}

	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	d.onAudio = nil

	return nil
}

func (d *captureDevice) uninit() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	d.onAudio = nil
}
