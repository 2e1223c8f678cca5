package transport

import (
	"context"
	"sync"
)

// Loopback is an in-memory transport for tests and local experiments. Audio
// pushed with ReceiveAudio is delivered to the pipeline as input; audio the
// pipeline sends is captured for inspection.
type Loopback struct {
	mu sync.Mutex

	joined bool

	onAudioReceived     func([]byte)
	onParticipantJoined func(Participant)
	onParticipantLeft   func(Participant)

	sent [][]byte
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Join(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joined = true
	return nil
}

func (l *Loopback) Leave() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joined = false
	return nil
}

func (l *Loopback) SendAudio(audio []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	chunk := make([]byte, len(audio))
	copy(chunk, audio)
	l.sent = append(l.sent, chunk)
	return nil
}

func (l *Loopback) OnAudioReceived(callback func([]byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAudioReceived = callback
}

func (l *Loopback) OnParticipantJoined(callback func(Participant)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onParticipantJoined = callback
}

func (l *Loopback) OnParticipantLeft(callback func(Participant)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onParticipantLeft = callback
}

// ReceiveAudio simulates audio arriving from the peer.
func (l *Loopback) ReceiveAudio(audio []byte) {
	l.mu.Lock()
	callback := l.onAudioReceived
	l.mu.Unlock()

	if callback != nil {
		callback(audio)
	}
}

// SimulateParticipantJoined fires the participant joined callback.
func (l *Loopback) SimulateParticipantJoined(participant Participant) {
	l.mu.Lock()
	callback := l.onParticipantJoined
	l.mu.Unlock()

	if callback != nil {
		callback(participant)
	}
}

// SimulateParticipantLeft fires the participant left callback.
func (l *Loopback) SimulateParticipantLeft(participant Participant) {
	l.mu.Lock()
	callback := l.onParticipantLeft
	l.mu.Unlock()

	if callback != nil {
		callback(participant)
	}
}

// SentAudio returns a copy of everything the pipeline has sent so far.
func (l *Loopback) SentAudio() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	sent := make([][]byte, len(l.sent))
	copy(sent, l.sent)
	return sent
}
