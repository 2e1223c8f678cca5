// Package pipeline runs real-time voice conversations as an ordered chain of
// frame-processing stages: transport audio in, voice activity detection,
// transcription, response generation, synthesis, transport audio out.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxflow/voxflow-core/core/conversations"
	"github.com/voxflow/voxflow-core/core/frames"
	"github.com/voxflow/voxflow-core/core/speechtotext"
	"github.com/voxflow/voxflow-core/core/transport"
	"github.com/voxflow/voxflow-core/core/vad"
)

// TaskParams are the behavioral switches of a pipeline run.
type TaskParams struct {
	// AllowInterruptions controls whether user speech cancels an in-flight
	// assistant turn. When false, user turns queue behind the active one.
	AllowInterruptions bool
	// EnableMetrics controls whether turn counters and latency histograms
	// are recorded.
	EnableMetrics bool
}

// Task owns one conversation pipeline from assembly to shutdown.
type Task struct {
	params TaskParams
	config taskConfig

	pipeline  *Pipeline
	turns     *turnTaking
	context   *conversations.Context
	observers *observerTable

	startOnce sync.Once
	endOnce   sync.Once
}

func NewTask(params TaskParams, opts ...TaskOption) (*Task, error) {
	config := newTaskConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.transport == nil {
		return nil, ConfigurationError{Field: "transport", Reason: "a transport is required"}
	}
	if config.transcriber == nil {
		return nil, ConfigurationError{Field: "transcriber", Reason: "a speech-to-text client is required"}
	}
	if config.model == nil {
		return nil, ConfigurationError{Field: "model", Reason: "a streaming LLM client is required"}
	}
	if config.synthesizer == nil {
		return nil, ConfigurationError{Field: "synthesizer", Reason: "a text-to-speech client is required"}
	}

	task := &Task{
		params:    params,
		config:    config,
		turns:     newTurnTaking(params.AllowInterruptions),
		context:   conversations.NewContext(conversations.WithSystemPrompt(config.systemPrompt)),
		observers: newObserverTable(),
	}

	if callback := config.callbacks.onParticipantJoined; callback != nil {
		task.observers.register(EventParticipantConnected, func(_ LifecycleEvent, participant transport.Participant) {
			callback(participant)
		})
	}
	if callback := config.callbacks.onParticipantLeft; callback != nil {
		task.observers.register(EventParticipantDisconnected, func(_ LifecycleEvent, participant transport.Participant) {
			callback(participant)
		})
	}

	stages := []Stage{
		newTransportInputStage(config.transport, config.encoding),
	}
	if config.vadScorer != nil {
		analyzer := vad.NewAnalyzer(config.vadScorer,
			vad.WithParams(config.vadParams),
			vad.WithEncodingInfo(config.encoding),
		)
		stages = append(stages, newVADStage(analyzer, task.turns))
	}
	stages = append(stages,
		newSTTStage(config.transcriber, speechtotext.WithEncodingInfo(config.encoding)),
		newUserResponseAggregator(task.turns),
		newUserContextAggregator(task.context),
		newLLMStage(config.model, task.context, task.turns, config.tools, params.EnableMetrics),
		newAssistantResponseAggregator(),
		newAssistantContextAggregator(task.context),
		newTTSStage(config.synthesizer, task.turns, config.encoding),
		newTransportOutputStage(config.transport, task.turns),
	)

	pipe, err := NewPipeline(stages, task.dispatch)
	if err != nil {
		return nil, err
	}
	task.pipeline = pipe

	task.turns.setCallbacks(task.interrupt, config.callbacks.onStateChanged)

	return task, nil
}

// Start joins the transport and launches the pipeline. It is idempotent.
func (t *Task) Start(ctx context.Context) error {
	if t == nil {
		return fmt.Errorf("task is required")
	}

	var startErr error
	t.startOnce.Do(func() {
		startErr = t.start(ctx)
	})
	return startErr
}

func (t *Task) start(ctx context.Context) error {
	t.config.transport.OnParticipantJoined(func(participant transport.Participant) {
		t.observers.notify(EventParticipantConnected, participant)
	})
	t.config.transport.OnParticipantLeft(func(participant transport.Participant) {
		t.observers.notify(EventParticipantDisconnected, participant)
	})

	if err := t.config.transport.Join(ctx); err != nil {
		return CapabilityError{Capability: "transport", Err: err, Fatal: true}
	}

	if err := t.pipeline.Start(ctx); err != nil {
		return err
	}
	t.observers.notify(EventPipelineConnected, transport.Participant{})
	go func() {
		_ = t.pipeline.Wait()
		t.observers.notify(EventPipelineDisconnected, transport.Participant{})
	}()

	return t.pipeline.Push(frames.NewStart())
}

// Queue pushes frames at the head of the pipeline, blocking while the input
// queue is full.
func (t *Task) Queue(queued ...frames.Frame) error {
	if t == nil {
		return fmt.Errorf("task is required")
	}

	for _, frame := range queued {
		if err := t.pipeline.Push(frame); err != nil {
			return err
		}
	}
	return nil
}

// Say queues a generation pass over the current context, used to have the
// assistant open the conversation.
func (t *Task) Say() error {
	if t == nil {
		return fmt.Errorf("task is required")
	}

	return t.Queue(frames.NewLLMRun())
}

// Interrupt cancels the active assistant turn, as if the user had spoken
// over it.
func (t *Task) Interrupt() {
	if t == nil {
		return
	}

	t.turns.interruptForShutdown()
	t.interrupt()
}

// On registers a lifecycle observer. Handlers for the same event are invoked
// synchronously in registration order.
func (t *Task) On(event LifecycleEvent, handler LifecycleHandler) {
	if t == nil {
		return
	}

	t.observers.register(event, handler)
}

// State reports the current turn state.
func (t *Task) State() TurnState {
	if t == nil {
		return TurnIdle
	}

	return t.turns.State()
}

// Context returns the shared conversation context.
func (t *Task) Context() *conversations.Context {
	if t == nil {
		return nil
	}

	return t.context
}

// End requests an orderly shutdown: the active turn is cancelled, buffered
// frames are flushed stage by stage, and the transport is left.
func (t *Task) End() {
	if t == nil {
		return
	}

	t.endOnce.Do(func() {
		t.turns.interruptForShutdown()
		t.pipeline.InterruptStages()
		t.pipeline.End()
	})
}

// Stop aborts the run without flushing.
func (t *Task) Stop() {
	if t == nil {
		return
	}

	t.pipeline.Stop()
}

// Wait blocks until the pipeline has fully stopped and returns any worker
// errors. The transport is left before Wait returns.
func (t *Task) Wait() error {
	if t == nil {
		return nil
	}

	err := t.pipeline.Wait()
	if leaveErr := t.config.transport.Leave(); leaveErr != nil && err == nil {
		err = CapabilityError{Capability: "transport", Err: leaveErr, Fatal: false}
	}
	return err
}

// interrupt delivers an interruption to the running pipeline. The turn
// counter has already been bumped by the state machine, so stale frames are
// dropped from this point on; the out-of-band stage interrupts cancel
// in-flight provider calls and the in-band frame flushes buffered state in
// queue order.
func (t *Task) interrupt() {
	t.pipeline.InterruptStages()
	go t.pipeline.Push(frames.NewInterrupt())

	if t.params.EnableMetrics {
		interruptionsCounter.Add(context.Background(), 1)
	}
}

// dispatch fans frames that left the last stage out to the observer
// callbacks. It runs on the last stage's worker goroutine, so callbacks see
// frames in pipeline order.
func (t *Task) dispatch(frame frames.Frame) {
	callbacks := t.config.callbacks

	switch frame := frame.(type) {
	case frames.TranscriptPartial:
		if callbacks.onPartialTranscription != nil {
			callbacks.onPartialTranscription(frame.Transcript())
		}
	case frames.TranscriptFinal:
		if callbacks.onTranscription != nil {
			callbacks.onTranscription(frame.Transcript())
		}
	case frames.LLMTextDelta:
		if callbacks.onResponseDelta != nil {
			callbacks.onResponseDelta(frame.Delta())
		}
	case frames.AssistantResponse:
		if callbacks.onResponse != nil {
			callbacks.onResponse(frame.Text())
		}
	case frames.LLMTurnComplete:
		if callbacks.onResponseEnd != nil {
			callbacks.onResponseEnd()
		}
	case frames.SynthesizedAudio:
		if callbacks.onAudio != nil {
			callbacks.onAudio(frame.Audio())
		}
	case frames.Error:
		// A failed turn must not hold the floor; the session degrades to
		// silence and recovers on the next utterance.
		t.turns.OnError()
		if callbacks.onError != nil {
			callbacks.onError(frame.Err())
		}
		if frame.Fatal() {
			go t.Stop()
		}
	}
}
