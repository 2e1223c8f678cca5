package frames

type Start struct{ Base }

func (f Start) isControl()     {}
func (f Start) String() string { return "Start" }

func NewStart() Start { return Start{Base: NewBase(KindStart)} }

// Interrupt cancels in-flight assistant generation and synthesis. Every stage
// reacts to it by discarding buffered or partial state.
type Interrupt struct{ Base }

func (f Interrupt) isControl()     {}
func (f Interrupt) String() string { return "Interrupt" }

func NewInterrupt() Interrupt { return Interrupt{Base: NewBase(KindInterrupt)} }

// End requests an orderly shutdown: each stage flushes buffered output,
// forwards the frame, and stops.
type End struct{ Base }

func (f End) isControl()     {}
func (f End) String() string { return "End" }

func NewEnd() End { return End{Base: NewBase(KindEnd)} }

// Error reports a stage or capability failure. Recoverable errors degrade the
// current turn; fatal errors terminate the pipeline run.
type Error struct {
	Base
	err   error
	stage string
	fatal bool
}

func (f Error) isControl()     {}
func (f Error) Err() error     { return f.err }
func (f Error) Stage() string  { return f.stage }
func (f Error) Fatal() bool    { return f.fatal }
func (f Error) String() string { return "Error: " + f.err.Error() }

func NewError(stage string, err error, fatal bool) Error {
	return Error{Base: NewBase(KindError), err: err, stage: stage, fatal: fatal}
}
