package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxflow/voxflow-core/core/frames"
)

// stageQueueCapacity bounds each stage's input queue. A full queue blocks the
// upstream producer, which is how backpressure propagates toward the source.
const stageQueueCapacity = 10

// Pipeline executes an ordered chain of stages. Each stage owns one worker
// goroutine and one bounded input queue; a frame emitted by stage i is only
// ever consumed by stage i+1, so relative frame order is preserved end to
// end even though stages run concurrently.
type Pipeline struct {
	stages []Stage
	queues []chan frames.Frame
	// sink receives frames that leave the last stage.
	sink func(frames.Frame)

	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once
	started   atomic.Bool

	workerErrMu sync.Mutex
	workerErr   error
}

func NewPipeline(stages []Stage, sink func(frames.Frame)) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, ConfigurationError{Field: "stages", Reason: "at least one stage is required"}
	}
	if sink == nil {
		sink = func(frames.Frame) {}
	}

	queues := make([]chan frames.Frame, len(stages))
	for i := range queues {
		queues[i] = make(chan frames.Frame, stageQueueCapacity)
	}

	return &Pipeline{
		stages:  stages,
		queues:  queues,
		sink:    sink,
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the stage workers and the asynchronous producers of any
// Starter stages. It is idempotent.
func (p *Pipeline) Start(ctx context.Context) error {
	if p == nil {
		return fmt.Errorf("pipeline is required")
	}

	var startErr error
	p.startOnce.Do(func() {
		for i, stage := range p.stages {
			if starter, ok := stage.(Starter); ok {
				if err := starter.Start(ctx, p.emitFunc(i)); err != nil {
					startErr = fmt.Errorf("failed to start stage %s: %w", stage.Name(), err)
					return
				}
			}
		}

		p.started.Store(true)

		wg := &sync.WaitGroup{}
		wg.Add(len(p.stages))
		for i := range p.stages {
			go func() {
				defer wg.Done()
				p.runStage(ctx, i)
			}()
		}

		go func() {
			wg.Wait()
			for _, stage := range p.stages {
				if closer, ok := stage.(Closer); ok {
					if err := closer.Close(); err != nil {
						p.addWorkerErr(fmt.Errorf("failed to close stage %s: %w", stage.Name(), err))
					}
				}
			}
			close(p.done)
		}()
	})

	return startErr
}

// Push queues a frame at the head of the pipeline. It blocks while the first
// stage's queue is full and fails once the pipeline is stopped.
func (p *Pipeline) Push(frame frames.Frame) error {
	if p == nil {
		return fmt.Errorf("pipeline is required")
	}

	select {
	case <-p.closeCh:
		return ErrShutdownRequested
	case p.queues[0] <- frame:
		return nil
	}
}

// InterruptStages delivers out-of-band interrupts to every stage that holds
// in-flight external work. The in-band interrupt frame still has to be pushed
// separately so buffered state is flushed in queue order.
func (p *Pipeline) InterruptStages() {
	if p == nil {
		return
	}

	for _, stage := range p.stages {
		if interruptible, ok := stage.(Interruptible); ok {
			interruptible.Interrupt()
		}
	}
}

// End requests an orderly shutdown by pushing an end frame. Workers exit one
// by one as the frame traverses the chain; Wait blocks until the last one is
// done.
func (p *Pipeline) End() {
	if p == nil {
		return
	}

	p.endOnce.Do(func() {
		if err := p.Push(frames.NewEnd()); err != nil {
			// Already stopped; nothing left to flush.
			return
		}
	})
}

// Stop aborts the pipeline without flushing. Queued frames are dropped.
func (p *Pipeline) Stop() {
	if p == nil {
		return
	}

	select {
	case <-p.closeCh:
	default:
		close(p.closeCh)
	}
}

// Wait blocks until every worker has exited and returns the joined worker
// errors, if any.
func (p *Pipeline) Wait() error {
	if p == nil || !p.started.Load() {
		return nil
	}

	<-p.done

	p.workerErrMu.Lock()
	defer p.workerErrMu.Unlock()
	return p.workerErr
}

func (p *Pipeline) emitFunc(stageIndex int) func(frames.Frame) {
	if stageIndex == len(p.stages)-1 {
		return p.sink
	}

	out := p.queues[stageIndex+1]
	return func(frame frames.Frame) {
		select {
		case <-p.closeCh:
		case out <- frame:
		}
	}
}

func (p *Pipeline) runStage(ctx context.Context, stageIndex int) {
	stage := p.stages[stageIndex]
	in := p.queues[stageIndex]
	emit := p.emitFunc(stageIndex)

	for {
		select {
		case <-p.closeCh:
			return
		case frame := <-in:
			p.processFrame(ctx, stage, frame, emit)

			if frames.IsControl(frame) {
				// Control frames traverse every stage; forwarding here keeps
				// stages from having to remember to do it.
				emit(frame)
			}

			if frame.Kind() == frames.KindEnd {
				if stageIndex == len(p.stages)-1 {
					p.Stop()
				}
				return
			}
		}
	}
}

func (p *Pipeline) processFrame(ctx context.Context, stage Stage, frame frames.Frame, emit func(frames.Frame)) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("stage %s panicked: %v", stage.Name(), recovered)
			p.addWorkerErr(err)
			emit(frames.NewError(stage.Name(), err, true))
			p.Stop()
		}
	}()

	if err := stage.Process(ctx, frame, emit); err != nil {
		logger.WarnContext(ctx, "stage failed to process frame",
			"stage", stage.Name(), "frame", string(frame.Kind()), "error", err)
		stageErrorsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage.Name())))

		var capabilityErr CapabilityError
		fatal := errors.As(err, &capabilityErr) && capabilityErr.Fatal
		if fatal {
			p.addWorkerErr(err)
		}
		emit(frames.NewError(stage.Name(), err, fatal))
	}
}

func (p *Pipeline) addWorkerErr(err error) {
	if err == nil {
		return
	}

	p.workerErrMu.Lock()
	p.workerErr = errors.Join(p.workerErr, err)
	p.workerErrMu.Unlock()
}
