package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxflow/voxflow-core/core/audio"
)

// playbackDevice buffers synthesized audio and feeds it to the speaker from
// the malgo data thread. Marks are byte positions in the buffer whose
// callbacks fire once playback passes them, which is how AwaitMark knows the
// speaker has drained.
type playbackDevice struct {
	initMu sync.Mutex
	device *malgo.Device

	mu      sync.Mutex
	pending []byte
	marks   []playbackMark
}

type playbackMark struct {
	name     string
	position int
	callback func(name string)
}

func (d *playbackDevice) init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	format, err := malgoFormat(encoding)
	if err != nil {
		return err
	}
	bytesPerFrame := malgo.SampleSizeInBytes(format) * encoding.Channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(encoding.Channels)
	config.Alsa.NoMMap = 1
	// 100ms periods, large enough to ride out synthesis jitter.
	config.PeriodSizeInFrames = uint32(encoding.SampleRate / 10)
	config.Periods = 4

	d.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			d.fill(output, int(frameCount)*bytesPerFrame)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (d *playbackDevice) start() error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	if d.device == nil {
		return fmt.Errorf("playback device not initialized")
	}
	if d.device.IsStarted() {
		return nil
	}

	if err := d.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (d *playbackDevice) stop() error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	if d.device == nil {
		return fmt.Errorf("playback device not initialized")
	}

	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	d.clearBuffer()

	return nil
}

func (d *playbackDevice) sendAudio(chunk []byte) error {
	if d.device == nil {
		return fmt.Errorf("playback device not initialized")
	}
	if !d.device.IsStarted() {
		return fmt.Errorf("playback device not started")
	}

	d.mu.Lock()
	d.pending = append(d.pending, chunk...)
	d.mu.Unlock()

	return nil
}

// clearBuffer drops audio that has not reached the speaker yet along with any
// pending marks. Their callbacks never fire.
func (d *playbackDevice) clearBuffer() {
	d.mu.Lock()
	d.pending = nil
	d.marks = nil
	d.mu.Unlock()
}

func (d *playbackDevice) mark(name string, callback func(name string)) {
	d.mu.Lock()
	d.marks = append(d.marks, playbackMark{
		name:     name,
		position: len(d.pending),
		callback: callback,
	})
	d.mu.Unlock()
}

// awaitMark blocks until everything buffered so far has been played.
func (d *playbackDevice) awaitMark() error {
	done := make(chan struct{})
	d.mark("", func(string) { close(done) })
	<-done
	return nil
}

func (d *playbackDevice) uninit() {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	d.clearBuffer()
}

// fill copies up to need buffered bytes into the device output and fires the
// callbacks of every mark the copy passed. Missing audio plays as silence,
// the output buffer arrives zeroed.
func (d *playbackDevice) fill(output []byte, need int) {
	d.mu.Lock()

	n := copy(output, d.pending)
	if n == len(d.pending) {
		d.pending = nil
	} else {
		d.pending = d.pending[n:]
	}

	var passed []playbackMark
	kept := d.marks[:0]
	for _, mark := range d.marks {
		if mark.position < need {
			passed = append(passed, mark)
		} else {
			mark.position -= need
			kept = append(kept, mark)
		}
	}
	d.marks = kept
	d.mu.Unlock()

	if len(passed) > 0 {
		go func() {
			for _, mark := range passed {
				mark.callback(mark.name)
			}
		}()
	}
}
