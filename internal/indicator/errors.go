package indicator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady means a pin's underlying hardware is unavailable.
	ErrNotReady = errors.New("gpio not ready")

	// ErrReadFailure means a status line could not be read during evaluation.
	ErrReadFailure = errors.New("failed to read STAT pins")

	// ErrWriteFailure means the LED level could not be written.
	ErrWriteFailure = errors.New("failed to set LED")
)

// Role names which of the three pins an error refers to.
type Role string

const (
	RoleLED   Role = "LED"
	RoleStat1 Role = "STAT1"
	RoleStat2 Role = "STAT2"
)

// Step is the setup step that failed.
type Step string

const (
	StepReady     Step = "ready"
	StepConfigure Step = "configure"
	StepInterrupt Step = "interrupt"
	StepSubscribe Step = "subscribe"
)

// InitError reports a failed setup step. Capability-not-ready failures wrap
// ErrNotReady; hardware rejections wrap the backend error.
type InitError struct {
	Device string
	Pin    Role
	Step   Step
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("indicator %s: %s %s: %v", e.Device, e.Pin, e.Step, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
