package pipeline

import (
	"context"

	"github.com/voxflow/voxflow-core/core/frames"
)

// Stage is one link of a pipeline. Process handles a single frame and may
// emit any number of frames downstream; it must not retain the emit function
// beyond the call unless the stage also implements Starter.
//
// Stages never forward control frames themselves; the executor does that
// after Process returns, so a stage only reacts to them.
type Stage interface {
	Name() string
	Process(ctx context.Context, frame frames.Frame, emit func(frames.Frame)) error
}

// Starter is implemented by stages that produce frames asynchronously, from
// provider callbacks or device input. Start hands the stage an emit function
// bound to its output queue; emitted frames interleave with Process output in
// arrival order.
type Starter interface {
	Start(ctx context.Context, emit func(frames.Frame)) error
}

// Interruptible is implemented by stages that hold in-flight external work.
// Interrupt is called out of band, before the interrupt control frame reaches
// the stage through its queue, so streaming calls can be cancelled
// immediately.
type Interruptible interface {
	Interrupt()
}

// Closer is implemented by stages that hold external resources.
type Closer interface {
	Close() error
}
