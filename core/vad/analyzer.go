// Package vad infers speech presence from raw audio and debounces it into
// speech-started / speech-stopped events.
package vad

import (
	"time"

	"github.com/voxflow/voxflow-core/core/audio"
)

type State string

const (
	StateQuiet    State = "quiet"
	StateStarting State = "starting"
	StateSpeaking State = "speaking"
	StateStopping State = "stopping"
)

type EventType int

const (
	EventSpeechStarted EventType = iota
	EventSpeechStopped
)

type Event struct {
	Type      EventType
	Timestamp time.Time
}

// Scorer is the external probability model: it maps one audio chunk to a
// speech probability in [0, 1].
type Scorer interface {
	Score(chunk []byte) float64
}

const (
	DefaultStartDuration = 300 * time.Millisecond
	DefaultStopDuration  = 500 * time.Millisecond
	DefaultThreshold     = 0.5
)

type Params struct {
	// StartDuration is how long the probability must stay above Threshold
	// before SpeechStarted fires.
	StartDuration time.Duration
	// StopDuration is how long the probability must stay below Threshold
	// before SpeechStopped fires.
	StopDuration time.Duration
	Threshold    float64
}

type AnalyzerOption func(*Analyzer)

func WithParams(params Params) AnalyzerOption {
	return func(a *Analyzer) {
		if params.StartDuration > 0 {
			a.params.StartDuration = params.StartDuration
		}
		if params.StopDuration > 0 {
			a.params.StopDuration = params.StopDuration
		}
		if params.Threshold > 0 {
			a.params.Threshold = params.Threshold
		}
	}
}

func WithEncodingInfo(encoding audio.EncodingInfo) AnalyzerOption {
	return func(a *Analyzer) {
		if !encoding.IsZero() {
			a.encoding = encoding
		}
	}
}

// Analyzer runs chunk probabilities through a debounce window. Transitions:
// Quiet→Starting→Speaking on sustained high probability and
// Speaking→Stopping→Quiet on sustained low probability; any reversal during
// Starting or Stopping returns to the prior stable state.
//
// Analyzer is not safe for concurrent use; feed it from a single goroutine.
type Analyzer struct {
	scorer   Scorer
	params   Params
	encoding audio.EncodingInfo

	state       State
	accumulated time.Duration
}

func NewAnalyzer(scorer Scorer, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		scorer: scorer,
		params: Params{
			StartDuration: DefaultStartDuration,
			StopDuration:  DefaultStopDuration,
			Threshold:     DefaultThreshold,
		},
		encoding: audio.GetDefaultEncodingInfo(),
		state:    StateQuiet,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Analyzer) State() State { return a.state }

func (a *Analyzer) Reset() {
	a.state = StateQuiet
	a.accumulated = 0
}

// Observe scores one chunk and advances the debounce window. It returns a
// non-nil event only on a Starting→Speaking or Stopping→Quiet transition;
// no event is the common case.
func (a *Analyzer) Observe(chunk []byte) *Event {
	if a.scorer == nil || len(chunk) == 0 {
		return nil
	}

	speech := a.scorer.Score(chunk) >= a.params.Threshold
	duration := a.encoding.ChunkDuration(len(chunk))

	switch a.state {
	case StateQuiet:
		if !speech {
			return nil
		}
		a.state = StateStarting
		a.accumulated = duration
		return a.maybeStart()

	case StateStarting:
		if !speech {
			a.state = StateQuiet
			a.accumulated = 0
			return nil
		}
		a.accumulated += duration
		return a.maybeStart()

	case StateSpeaking:
		if speech {
			return nil
		}
		a.state = StateStopping
		a.accumulated = duration
		return a.maybeStop()

	case StateStopping:
		if speech {
			a.state = StateSpeaking
			a.accumulated = 0
			return nil
		}
		a.accumulated += duration
		return a.maybeStop()
	}

	return nil
}

func (a *Analyzer) maybeStart() *Event {
	if a.accumulated < a.params.StartDuration {
		return nil
	}

	a.state = StateSpeaking
	a.accumulated = 0
	return &Event{Type: EventSpeechStarted, Timestamp: time.Now()}
}

func (a *Analyzer) maybeStop() *Event {
	if a.accumulated < a.params.StopDuration {
		return nil
	}

	a.state = StateQuiet
	a.accumulated = 0
	return &Event{Type: EventSpeechStopped, Timestamp: time.Now()}
}
