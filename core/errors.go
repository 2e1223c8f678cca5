package pipeline

import (
	"errors"
	"fmt"
)

// ErrShutdownRequested is returned by blocking operations that were cut short
// by an orderly shutdown rather than a failure.
var ErrShutdownRequested = errors.New("shutdown requested")

// ConfigurationError reports an invalid or missing piece of pipeline
// configuration. It is always raised before the pipeline starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// CapabilityError reports a failure in an attached capability (transcriber,
// model, synthesizer, transport). Recoverable failures degrade the current
// turn; fatal ones terminate the run.
type CapabilityError struct {
	Capability string
	Err        error
	Fatal      bool
}

func (e CapabilityError) Error() string {
	return fmt.Sprintf("%s capability failed: %v", e.Capability, e.Err)
}

func (e CapabilityError) Unwrap() error { return e.Err }
