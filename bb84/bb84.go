// Package bb84 provides a step-by-step simulation of the BB84 quantum key
// distribution protocol, from raw bit generation through sifting, intrusion
// detection, information reconciliation and privacy amplification.
//
// An Engine owns the protocol state and walks it through ten steps. Drivers
// (a terminal UI, a headless CLI) call NextStep, PrevStep, GoToStep and
// friends, and render whatever State and Metrics report.
package bb84

import "errors"

// The ten protocol steps, in order.
const (
	StepIntro = iota
	StepAliceBits
	StepAliceBases
	StepEncode
	StepChannel
	StepReceive
	StepBobMeasure
	StepSift
	StepEveCheck
	StepKey

	NumSteps
)

var stepNames = [NumSteps]string{
	"Introduction",
	"Alice generates bits",
	"Alice chooses bases",
	"Alice encodes qubits",
	"Quantum channel",
	"Bob receives qubits",
	"Bob measures",
	"Basis sifting",
	"Eavesdropper check",
	"Error correction and privacy amplification",
}

// StepName returns a short human readable title for step.
func StepName(step int) string {
	if step < 0 || step >= NumSteps {
		return "unknown step"
	}
	return stepNames[step]
}

var (
	// ErrPrecondition is returned when a step is entered before the data it
	// depends on exists. Nothing changes; navigating back recovers.
	ErrPrecondition = errors.New("step precondition not met")

	// ErrAborted is returned when the protocol has aborted, either by the step
	// that detected the problem or by any later attempt to move forward. Only
	// Reset clears it.
	ErrAborted = errors.New("protocol aborted")

	// ErrInvariant is returned when a computation produced output that breaks
	// an invariant, e.g. a key of the wrong length. The step does not complete.
	ErrInvariant = errors.New("computation invariant violated")

	// ErrOutOfRange is returned for step numbers outside [0, NumSteps).
	ErrOutOfRange = errors.New("step out of range")
)
