package pipeline

import (
	"sync"
	"sync/atomic"
)

// TurnState describes who currently holds the conversational floor.
type TurnState string

const (
	TurnIdle              TurnState = "idle"
	TurnUserSpeaking      TurnState = "user_speaking"
	TurnProcessing        TurnState = "processing"
	TurnAssistantSpeaking TurnState = "assistant_speaking"
)

// turnTaking is the shared turn state machine. Stages report what they see
// through its methods and it decides when an interruption has to be raised.
//
// It also issues the turn numbers used to detect stale synthesized audio: the
// counter is bumped on every interruption, so any audio tagged with an older
// number belongs to a cancelled assistant turn.
type turnTaking struct {
	mu    sync.Mutex
	state TurnState

	allowInterruptions bool
	// pendingInterruption records user speech that arrived while the
	// assistant held the floor and interruptions were disabled. The queued
	// user turn is not lost; it drives the next assistant turn once the
	// current one completes.
	pendingInterruption bool

	turn atomic.Int64

	onInterrupt   func()
	onStateChange func(TurnState)
}

func newTurnTaking(allowInterruptions bool) *turnTaking {
	return &turnTaking{
		state:              TurnIdle,
		allowInterruptions: allowInterruptions,
		onInterrupt:        func() {},
		onStateChange:      func(TurnState) {},
	}
}

func (t *turnTaking) setCallbacks(onInterrupt func(), onStateChange func(TurnState)) {
	if t == nil {
		return
	}

	if onInterrupt != nil {
		t.onInterrupt = onInterrupt
	}
	if onStateChange != nil {
		t.onStateChange = onStateChange
	}
}

func (t *turnTaking) State() TurnState {
	if t == nil {
		return TurnIdle
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CurrentTurn returns the active turn number.
func (t *turnTaking) CurrentTurn() int64 {
	if t == nil {
		return 0
	}

	return t.turn.Load()
}

// OnUserSpeechStarted handles a debounced voice activity onset. While the
// assistant holds the floor this is an interruption attempt.
func (t *turnTaking) OnUserSpeechStarted() {
	if t == nil {
		return
	}

	t.mu.Lock()
	prev := t.state
	var interrupt bool
	switch t.state {
	case TurnIdle:
		t.state = TurnUserSpeaking
	case TurnProcessing, TurnAssistantSpeaking:
		if t.allowInterruptions {
			interrupt = true
			t.turn.Add(1)
			t.state = TurnUserSpeaking
		} else {
			t.pendingInterruption = true
		}
	}
	state := t.state
	t.mu.Unlock()

	if interrupt {
		t.onInterrupt()
	}
	t.notify(prev, state)
}

// OnUserSpeechStopped handles a debounced voice activity offset. The floor is
// not released until the transcriber confirms the utterance, so this is a
// no-op for the state machine.
func (t *turnTaking) OnUserSpeechStopped() {}

// OnTranscriptFinal handles a confirmed end of utterance. The transcriber
// outranks voice activity: a final transcript moves to processing even if no
// speech onset was ever observed.
func (t *turnTaking) OnTranscriptFinal() {
	if t == nil {
		return
	}

	t.mu.Lock()
	prev := t.state
	switch t.state {
	case TurnIdle, TurnUserSpeaking:
		t.state = TurnProcessing
	}
	state := t.state
	t.mu.Unlock()

	t.notify(prev, state)
}

// OnAssistantSpeechStarted handles the first synthesized audio of the current
// turn reaching the output.
func (t *turnTaking) OnAssistantSpeechStarted() {
	if t == nil {
		return
	}

	t.mu.Lock()
	prev := t.state
	switch t.state {
	case TurnIdle, TurnProcessing:
		// Idle covers externally queued generation passes, like an opening
		// greeting, that never went through a user turn.
		t.state = TurnAssistantSpeaking
	}
	state := t.state
	t.mu.Unlock()

	t.notify(prev, state)
}

// OnAssistantTurnComplete handles the end of the assistant's turn. Any user
// turn queued behind the completed one keeps the pipeline in processing.
func (t *turnTaking) OnAssistantTurnComplete() {
	if t == nil {
		return
	}

	t.mu.Lock()
	prev := t.state
	pending := t.pendingInterruption
	t.pendingInterruption = false
	switch t.state {
	case TurnProcessing, TurnAssistantSpeaking:
		if pending {
			t.state = TurnProcessing
		} else {
			t.state = TurnIdle
		}
	}
	state := t.state
	t.mu.Unlock()

	t.notify(prev, state)
}

// OnError handles an error frame reaching the end of the pipeline. The
// active turn is abandoned and the floor is released so the next utterance
// starts clean, even when interruptions are disabled.
func (t *turnTaking) OnError() {
	if t == nil {
		return
	}

	t.mu.Lock()
	prev := t.state
	t.pendingInterruption = false
	t.state = TurnIdle
	t.mu.Unlock()

	t.notify(prev, TurnIdle)
}

// interruptForShutdown cancels whatever turn is active without a user speech
// onset, used when the pipeline is being torn down.
func (t *turnTaking) interruptForShutdown() {
	if t == nil {
		return
	}

	t.mu.Lock()
	prev := t.state
	t.turn.Add(1)
	t.pendingInterruption = false
	t.state = TurnIdle
	t.mu.Unlock()

	t.notify(prev, TurnIdle)
}

// notify reports the state observed after the last transition. Callbacks run
// on the caller's goroutine so state changes are observed in order.
func (t *turnTaking) notify(prev, state TurnState) {
	if prev == state {
		return
	}
	t.onStateChange(state)
}
