package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/voxflow/voxflow-core/core/frames"
)

// passthroughStage records what it sees and forwards non-control frames. It
// can be scripted to fail or panic on a frame kind.
type passthroughStage struct {
	name    string
	fail    error
	panicOn frames.Kind

	mu   sync.Mutex
	seen []frames.Kind
}

func (s *passthroughStage) Name() string { return s.name }

func (s *passthroughStage) Process(_ context.Context, frame frames.Frame, emit func(frames.Frame)) error {
	s.mu.Lock()
	s.seen = append(s.seen, frame.Kind())
	s.mu.Unlock()

	if s.panicOn != "" && frame.Kind() == s.panicOn {
		panic("scripted panic")
	}
	if frames.IsControl(frame) {
		return nil
	}
	if s.fail != nil {
		return s.fail
	}

	emit(frame)
	return nil
}

func (s *passthroughStage) seenKinds() []frames.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]frames.Kind{}, s.seen...)
}

type frameCollector struct {
	mu     sync.Mutex
	frames []frames.Frame
}

func (c *frameCollector) sink(frame frames.Frame) {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
}

func (c *frameCollector) collected() []frames.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frames.Frame{}, c.frames...)
}

func TestPipelinePreservesFrameOrder(t *testing.T) {
	stages := []Stage{
		&passthroughStage{name: "first"},
		&passthroughStage{name: "second"},
		&passthroughStage{name: "third"},
	}
	collector := &frameCollector{}

	pipe, err := NewPipeline(stages, collector.sink)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	// More frames than a single queue holds, so pushes block on backpressure
	// at least once.
	const frameCount = 3 * stageQueueCapacity
	for i := range frameCount {
		frame := frames.NewTranscriptPartial(fmt.Sprintf("partial %d", i), 0.9, "utt-1")
		if err := pipe.Push(frame); err != nil {
			t.Fatalf("failed to push frame %d: %v", i, err)
		}
	}

	pipe.End()
	if err := pipe.Wait(); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	collected := collector.collected()
	if len(collected) != frameCount+1 {
		t.Fatalf("expected %d frames plus the end frame, got %d", frameCount, len(collected))
	}
	for i := range frameCount {
		partial, ok := collected[i].(frames.TranscriptPartial)
		if !ok {
			t.Fatalf("expected frame %d to be a partial, got %T", i, collected[i])
		}
		if want := fmt.Sprintf("partial %d", i); partial.Transcript() != want {
			t.Fatalf("frames reordered: expected %q at %d, got %q", want, i, partial.Transcript())
		}
	}
	if collected[frameCount].Kind() != frames.KindEnd {
		t.Fatalf("expected the end frame last, got %v", collected[frameCount].Kind())
	}
}

func TestPipelineForwardsControlFramesThroughEveryStage(t *testing.T) {
	first := &passthroughStage{name: "first"}
	second := &passthroughStage{name: "second"}
	collector := &frameCollector{}

	pipe, err := NewPipeline([]Stage{first, second}, collector.sink)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	pipe.Push(frames.NewStart())
	pipe.Push(frames.NewInterrupt())
	pipe.End()
	if err := pipe.Wait(); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	for _, stage := range []*passthroughStage{first, second} {
		seen := stage.seenKinds()
		want := []frames.Kind{frames.KindStart, frames.KindInterrupt, frames.KindEnd}
		if len(seen) != len(want) {
			t.Fatalf("stage %s saw %v, want %v", stage.name, seen, want)
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Fatalf("stage %s saw %v, want %v", stage.name, seen, want)
			}
		}
	}

	collected := collector.collected()
	if len(collected) != 3 {
		t.Fatalf("expected the control frames to reach the sink, got %d frames", len(collected))
	}
}

func TestPipelineEmitsErrorFrameOnStageFailure(t *testing.T) {
	failing := &passthroughStage{name: "failing", fail: errors.New("provider unavailable")}
	collector := &frameCollector{}

	pipe, err := NewPipeline([]Stage{&passthroughStage{name: "first"}, failing}, collector.sink)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	pipe.Push(frames.NewTranscriptPartial("hello", 0.9, "utt-1"))
	pipe.End()
	if err := pipe.Wait(); err != nil {
		t.Fatalf("expected a non-fatal failure to leave the pipeline healthy, got %v", err)
	}

	var errorFrame *frames.Error
	for _, frame := range collector.collected() {
		if frame, ok := frame.(frames.Error); ok {
			errorFrame = &frame
			break
		}
	}
	if errorFrame == nil {
		t.Fatalf("expected an error frame at the sink")
	}
	if errorFrame.Stage() != "failing" {
		t.Fatalf("expected the error to name the failing stage, got %q", errorFrame.Stage())
	}
	if errorFrame.Fatal() {
		t.Fatalf("expected a non-fatal error frame")
	}
}

func TestPipelineRecoversStagePanic(t *testing.T) {
	panicking := &passthroughStage{name: "panicking", panicOn: frames.KindTranscriptPartial}
	collector := &frameCollector{}

	pipe, err := NewPipeline([]Stage{&passthroughStage{name: "first"}, panicking}, collector.sink)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	pipe.Push(frames.NewTranscriptPartial("boom", 0.9, "utt-1"))

	err = pipe.Wait()
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected a panic to surface from Wait, got %v", err)
	}

	var sawFatal bool
	for _, frame := range collector.collected() {
		if frame, ok := frame.(frames.Error); ok && frame.Fatal() {
			sawFatal = true
		}
	}
	if !sawFatal {
		t.Fatalf("expected a fatal error frame at the sink")
	}
}

func TestPipelinePushAfterStop(t *testing.T) {
	pipe, err := NewPipeline([]Stage{&passthroughStage{name: "only"}}, nil)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipeline: %v", err)
	}

	pipe.Stop()

	if err := pipe.Push(frames.NewStart()); !errors.Is(err, ErrShutdownRequested) {
		t.Fatalf("expected ErrShutdownRequested, got %v", err)
	}
	if err := pipe.Wait(); err != nil {
		t.Fatalf("expected a clean stop, got %v", err)
	}
}
