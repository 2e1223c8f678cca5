// Package transport abstracts how conversation audio enters and leaves the
// pipeline, whether over a network session or local audio devices.
package transport

import "context"

// Participant identifies a remote peer in a transport session.
type Participant struct {
	ID   string
	Name string
}

// Transport is a bidirectional audio session. Callbacks must be registered
// before Join; they are invoked from the transport's own goroutines.
type Transport interface {
	// Join connects the session. It fails if required credentials or devices
	// are unavailable.
	Join(ctx context.Context) error
	// Leave disconnects the session. Repeated calls are ignored.
	Leave() error

	// SendAudio plays or forwards synthesized audio to the peer.
	SendAudio(audio []byte) error

	OnAudioReceived(callback func(audio []byte))
	OnParticipantJoined(callback func(Participant))
	OnParticipantLeft(callback func(Participant))
}
