package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxflow/voxflow-core/core/audio"
	"github.com/voxflow/voxflow-core/core/frames"
	"github.com/voxflow/voxflow-core/core/llms"
	"github.com/voxflow/voxflow-core/core/speechtotext"
	"github.com/voxflow/voxflow-core/core/texttospeech"
	"github.com/voxflow/voxflow-core/core/transport"
)

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeTranscriber struct {
	mu      sync.Mutex
	options speechtotext.TranscriptionOptions
	started bool
	sent    int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	f.mu.Lock()
	f.options = options
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTranscriber) SendAudio(_ []byte) error {
	f.mu.Lock()
	f.sent++
	f.mu.Unlock()
	return nil
}

func (f *fakeTranscriber) running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeTranscriber) emitFinal(transcript, utteranceID string) {
	f.mu.Lock()
	callback := f.options.FinalTranscriptCallback
	f.mu.Unlock()
	if callback != nil {
		callback(transcript, utteranceID)
	}
}

type fakeLLM struct {
	mu        sync.Mutex
	responses [][]string
	toolCalls []llms.ToolCall
	fail      error
	block     bool
	calls     int
	prompts   []llms.PromptOptions
}

func (f *fakeLLM) PromptWithStream(_ context.Context, _ *string, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, options)
	var deltas []string
	if f.calls < len(f.responses) {
		deltas = f.responses[f.calls]
	}
	// Scripted tool calls are requested on the first pass only.
	var toolCalls []llms.ToolCall
	if f.calls == 0 {
		toolCalls = f.toolCalls
	}
	f.calls++
	block := f.block
	fail := f.fail
	f.mu.Unlock()

	return &fakeStream{deltas: deltas, toolCalls: toolCalls, fail: fail, block: block}
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLLM) promptedWith(index int) llms.PromptOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= len(f.prompts) {
		return llms.PromptOptions{}
	}
	return f.prompts[index]
}

// fakeStream yields its scripted tool calls and deltas; with block set it
// hangs after the first delta until the generation context is cancelled, and
// with fail set it yields the error instead of content.
type fakeStream struct {
	deltas    []string
	toolCalls []llms.ToolCall
	fail      error
	block     bool
}

func (s *fakeStream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		if s.fail != nil {
			yield(nil, s.fail)
			return
		}
		for _, call := range s.toolCalls {
			if !yield(fakeToolCallChunk{call: call}, nil) {
				return
			}
		}
		for i, delta := range s.deltas {
			if !yield(fakeContentChunk{content: delta}, nil) {
				return
			}
			if s.block && i == 0 {
				<-ctx.Done()
				yield(nil, ctx.Err())
				return
			}
		}
	}
}

type fakeContentChunk struct{ content string }

func (c fakeContentChunk) FinishReason() *string { return nil }
func (c fakeContentChunk) Content() string       { return c.content }

type fakeToolCallChunk struct{ call llms.ToolCall }

func (c fakeToolCallChunk) FinishReason() *string { return nil }
func (c fakeToolCallChunk) ToolCall() llms.ToolCall {
	return c.call
}

type fakeSynthesizer struct {
	mu         sync.Mutex
	generators []*fakeGenerator
}

func (f *fakeSynthesizer) NewSpeechGenerator(_ context.Context, opts ...texttospeech.SynthesisOption) (texttospeech.SpeechGenerator, error) {
	options := texttospeech.SynthesisOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	generator := &fakeGenerator{options: options}
	f.mu.Lock()
	f.generators = append(f.generators, generator)
	f.mu.Unlock()
	return generator, nil
}

func (f *fakeSynthesizer) generatorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.generators)
}

// fakeGenerator produces one audio chunk per 8 bytes of text, all delivered
// when the text completes.
type fakeGenerator struct {
	mu        sync.Mutex
	options   texttospeech.SynthesisOptions
	text      strings.Builder
	cancelled bool
	closed    bool
}

func (g *fakeGenerator) SendText(text string) error {
	g.mu.Lock()
	g.text.WriteString(text)
	g.mu.Unlock()
	return nil
}

func (g *fakeGenerator) Mark() error { return nil }

func (g *fakeGenerator) EndOfText() error {
	g.mu.Lock()
	chunks := len(g.text.String())/8 + 1
	audioCallback := g.options.SpeechAudioCallback
	endedCallback := g.options.SpeechEndedCallback
	g.mu.Unlock()

	for range chunks {
		if audioCallback != nil {
			audioCallback([]byte{0x01, 0x02, 0x03, 0x04})
		}
	}
	if endedCallback != nil {
		endedCallback()
	}
	return nil
}

func (g *fakeGenerator) Cancel() error {
	g.mu.Lock()
	g.cancelled = true
	g.mu.Unlock()
	return nil
}

func (g *fakeGenerator) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return nil
}

func TestTaskRunsFullConversationTurn(t *testing.T) {
	loopback := transport.NewLoopback()
	transcriber := &fakeTranscriber{}
	model := &fakeLLM{responses: [][]string{{"Hi! ", "How can I help?"}}}
	synthesizer := &fakeSynthesizer{}

	var mu sync.Mutex
	var finalTranscript, response string
	responseEnded := false

	task, err := NewTask(TaskParams{AllowInterruptions: true},
		WithTransport(loopback),
		WithTranscriber(transcriber),
		WithStreamingLLM(model),
		WithSynthesizer(synthesizer),
		WithTranscriptionCallback(func(transcript string) {
			mu.Lock()
			finalTranscript = transcript
			mu.Unlock()
		}),
		WithResponseCallback(func(text string) {
			mu.Lock()
			response = text
			mu.Unlock()
		}),
		WithResponseEndCallback(func() {
			mu.Lock()
			responseEnded = true
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	waitFor(t, "transcriber to start", transcriber.running)

	transcriber.emitFinal("hello there", "utterance-1")

	waitFor(t, "the response to finish", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return responseEnded
	})

	mu.Lock()
	if finalTranscript != "hello there" {
		t.Fatalf("expected transcript %q, got %q", "hello there", finalTranscript)
	}
	if response != "Hi! How can I help?" {
		t.Fatalf("expected assembled response, got %q", response)
	}
	mu.Unlock()

	if len(loopback.SentAudio()) == 0 {
		t.Fatalf("expected synthesized audio to reach the transport")
	}
	if got := task.State(); got != TurnIdle {
		t.Fatalf("expected the task to return to %q, got %q", TurnIdle, got)
	}

	messages := task.Context().Snapshot()
	var sawUser, sawAssistant bool
	for _, message := range messages {
		if message.Role == llms.RoleUser && message.Content == "hello there" {
			sawUser = true
		}
		if message.Role == llms.RoleAssistant && message.Content == "Hi! How can I help?" {
			sawAssistant = true
		}
	}
	if !sawUser || !sawAssistant {
		t.Fatalf("expected both turns in the context, got %+v", messages)
	}

	task.End()
	if err := task.Wait(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
}

func TestTaskGreetsWithoutUserTurn(t *testing.T) {
	loopback := transport.NewLoopback()
	transcriber := &fakeTranscriber{}
	model := &fakeLLM{responses: [][]string{{"Welcome!"}}}
	synthesizer := &fakeSynthesizer{}

	var mu sync.Mutex
	var response string

	task, err := NewTask(TaskParams{AllowInterruptions: true},
		WithTransport(loopback),
		WithTranscriber(transcriber),
		WithStreamingLLM(model),
		WithSynthesizer(synthesizer),
		WithSystemPrompt("Greet the user."),
		WithResponseCallback(func(text string) {
			mu.Lock()
			response = text
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	if err := task.Say(); err != nil {
		t.Fatalf("failed to queue greeting: %v", err)
	}

	waitFor(t, "the greeting", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return response == "Welcome!"
	})

	waitFor(t, "the task to go idle", func() bool {
		return task.State() == TurnIdle
	})

	task.End()
	if err := task.Wait(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
}

func TestTaskInterruptAbandonsGeneration(t *testing.T) {
	loopback := transport.NewLoopback()
	transcriber := &fakeTranscriber{}
	model := &fakeLLM{responses: [][]string{{"This is a very long answer that "}}, block: true}
	synthesizer := &fakeSynthesizer{}

	var mu sync.Mutex
	var response string
	deltas := 0

	task, err := NewTask(TaskParams{AllowInterruptions: true},
		WithTransport(loopback),
		WithTranscriber(transcriber),
		WithStreamingLLM(model),
		WithSynthesizer(synthesizer),
		WithResponseDeltaCallback(func(string) {
			mu.Lock()
			deltas++
			mu.Unlock()
		}),
		WithResponseCallback(func(text string) {
			mu.Lock()
			response = text
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	waitFor(t, "transcriber to start", transcriber.running)

	transcriber.emitFinal("tell me everything", "utterance-1")

	waitFor(t, "the generation to stream", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deltas > 0
	})

	task.Interrupt()

	waitFor(t, "the task to go idle", func() bool {
		return task.State() == TurnIdle
	})

	task.End()
	if err := task.Wait(); err != nil {
		t.Fatalf("task failed: %v", err)
	}

	mu.Lock()
	if response != "" {
		t.Fatalf("expected no published response for an interrupted turn, got %q", response)
	}
	mu.Unlock()

	if len(loopback.SentAudio()) != 0 {
		t.Fatalf("expected no audio for an interrupted turn")
	}
}

func TestTaskReturnsToIdleAfterCapabilityError(t *testing.T) {
	loopback := transport.NewLoopback()
	transcriber := &fakeTranscriber{}
	model := &fakeLLM{fail: errors.New("provider unavailable")}
	synthesizer := &fakeSynthesizer{}

	var mu sync.Mutex
	var observed error

	// Interruptions disabled is the harsher case: without the error reset the
	// floor would never be released.
	task, err := NewTask(TaskParams{AllowInterruptions: false},
		WithTransport(loopback),
		WithTranscriber(transcriber),
		WithStreamingLLM(model),
		WithSynthesizer(synthesizer),
		WithErrorCallback(func(err error) {
			mu.Lock()
			observed = err
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	waitFor(t, "transcriber to start", transcriber.running)

	transcriber.emitFinal("hello there", "utterance-1")

	waitFor(t, "the error to surface", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return observed != nil
	})
	waitFor(t, "the floor to be released after the error", func() bool {
		return task.State() == TurnIdle
	})

	mu.Lock()
	if !strings.Contains(observed.Error(), "provider unavailable") {
		t.Fatalf("expected the provider error to surface, got %v", observed)
	}
	mu.Unlock()

	// The session recovers: the next utterance opens a fresh turn.
	model.mu.Lock()
	model.fail = nil
	model.responses = [][]string{{}, {"Back again."}}
	model.mu.Unlock()

	transcriber.emitFinal("are you there", "utterance-2")
	waitFor(t, "the next turn to run", func() bool { return model.callCount() >= 2 })

	task.End()
	if err := task.Wait(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
}

func TestTaskExecutesToolCalls(t *testing.T) {
	loopback := transport.NewLoopback()
	transcriber := &fakeTranscriber{}
	model := &fakeLLM{
		toolCalls: []llms.ToolCall{{ID: "call-1", Name: "lookup_weather", Arguments: `{"city":"Zagreb"}`}},
		responses: [][]string{nil, {"It is sunny in Zagreb."}},
	}
	synthesizer := &fakeSynthesizer{}

	var toolMu sync.Mutex
	var toolArgs string

	type weatherQuery struct {
		City string `json:"city"`
	}
	weatherTool := llms.NewTool("lookup_weather", "Look up the current weather for a city.",
		func(_ context.Context, query weatherQuery) (string, error) {
			toolMu.Lock()
			toolArgs = query.City
			toolMu.Unlock()
			return "sunny, 24C", nil
		})

	var mu sync.Mutex
	var response string

	task, err := NewTask(TaskParams{AllowInterruptions: true},
		WithTransport(loopback),
		WithTranscriber(transcriber),
		WithStreamingLLM(model),
		WithSynthesizer(synthesizer),
		WithTools(weatherTool),
		WithResponseCallback(func(text string) {
			mu.Lock()
			response = text
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	waitFor(t, "transcriber to start", transcriber.running)

	transcriber.emitFinal("what's the weather in zagreb", "utterance-1")

	waitFor(t, "the tool-informed response", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return response == "It is sunny in Zagreb."
	})

	toolMu.Lock()
	if toolArgs != "Zagreb" {
		t.Fatalf("expected the tool to receive the unmarshalled arguments, got %q", toolArgs)
	}
	toolMu.Unlock()

	// The first pass offered the tool; the second carried its result back.
	first := model.promptedWith(0)
	if len(first.Tools) != 1 || first.Tools[0].Name != "lookup_weather" {
		t.Fatalf("expected the tool to be offered to the model, got %+v", first.Tools)
	}
	second := model.promptedWith(1)
	var sawToolResult bool
	for _, message := range second.Messages {
		if message.Role == llms.RoleTool && message.ToolCallID == "call-1" && message.Content == "sunny, 24C" {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatalf("expected the tool result in the follow-up prompt, got %+v", second.Messages)
	}

	task.End()
	if err := task.Wait(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
}

func TestTaskRequiresAllCapabilities(t *testing.T) {
	_, err := NewTask(TaskParams{},
		WithTranscriber(&fakeTranscriber{}),
		WithStreamingLLM(&fakeLLM{}),
		WithSynthesizer(&fakeSynthesizer{}),
	)
	if err == nil {
		t.Fatalf("expected a configuration error without a transport")
	}

	var configErr ConfigurationError
	if !errors.As(err, &configErr) || configErr.Field != "transport" {
		t.Fatalf("expected the error to name the transport, got %v", err)
	}
}

func TestTTSStageDropsStaleDeltas(t *testing.T) {
	synthesizer := &fakeSynthesizer{}
	turns := newTurnTaking(true)
	stage := newTTSStage(synthesizer, turns, audio.GetDefaultEncodingInfo())
	if err := stage.Start(context.Background(), func(frames.Frame) {}); err != nil {
		t.Fatalf("failed to start stage: %v", err)
	}

	emit := func(frames.Frame) {}
	ctx := context.Background()

	// A delta tagged with a superseded turn never opens a generator.
	if err := stage.Process(ctx, frames.NewLLMTextDelta("stale", 3), emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synthesizer.generatorCount() != 0 {
		t.Fatalf("expected no generator for a stale delta")
	}

	if err := stage.Process(ctx, frames.NewLLMTextDelta("fresh", 0), emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synthesizer.generatorCount() != 1 {
		t.Fatalf("expected a generator for the current turn")
	}

	stage.Interrupt()
	synthesizer.mu.Lock()
	cancelled := synthesizer.generators[0].cancelled
	synthesizer.mu.Unlock()
	if !cancelled {
		t.Fatalf("expected the interrupt to cancel the in-flight generator")
	}
}

func TestTransportOutputDropsStaleAudio(t *testing.T) {
	loopback := transport.NewLoopback()
	turns := newTurnTaking(true)
	stage := newTransportOutputStage(loopback, turns)

	emit := func(frames.Frame) {}
	ctx := context.Background()

	if err := stage.Process(ctx, frames.NewSynthesizedAudio([]byte{1}, 0), emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := turns.State(); got != TurnAssistantSpeaking {
		t.Fatalf("expected the first chunk to start the assistant's turn, got %q", got)
	}

	// The user interrupts; audio from the old turn is still queued behind us.
	turns.OnUserSpeechStarted()

	if err := stage.Process(ctx, frames.NewSynthesizedAudio([]byte{2}, 0), emit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sent := loopback.SentAudio(); len(sent) != 1 {
		t.Fatalf("expected exactly one chunk to reach the transport, got %d", len(sent))
	}
}
