package syringe

import (
	"errors"
	"fmt"
)

// Every failure a command can produce is one of the errors below,
// possibly wrapped with context. Callers classify with errors.Is and,
// for device alarms, errors.As.
var (
	// ErrValueOutOfRange marks a rate, diameter or volume rejected
	// either by a local bounds check or by the device.
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrUnknownCommand means the device did not recognize the command
	// token at all.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidCommand means the command is not applicable in the
	// pump's current state.
	ErrInvalidCommand = errors.New("command not applicable")
	// ErrInvalidAnswer marks received bytes that do not match the
	// expected frame grammar. Local and recoverable; the command may be
	// retried.
	ErrInvalidAnswer = errors.New("invalid answer from pump")
	// ErrReadTimeout means no frame terminator arrived before the
	// deadline. Usually a disconnected or powered-off device rather
	// than a protocol mismatch.
	ErrReadTimeout = errors.New("timeout while waiting for an answer")
	// ErrPumpNotRunning and ErrPumpNotStopped mark post-command state
	// verification failures: the exchange succeeded at the framing
	// level but the device's status disagrees with the command.
	ErrPumpNotRunning = errors.New("pump did not start")
	ErrPumpNotStopped = errors.New("pump did not stop")
	// ErrUnforeseen marks a frame that matched the grammar but carried
	// a sub-field that could not be interpreted. Never guessed around.
	ErrUnforeseen = errors.New("uninterpretable pump response")
	// ErrNotResponding is returned by connection bring-up after its
	// bounded retries are exhausted.
	ErrNotResponding = errors.New("pump not responding")
)

// AlarmCode identifies a fault the device itself reports, as opposed to
// a locally detected protocol error.
type AlarmCode int

const (
	AlarmReset AlarmCode = iota
	AlarmStalled
	AlarmTimeout
	AlarmProgramError
	AlarmPhaseOutOfRange
)

var alarmMessages = []string{
	AlarmReset:           "pump was reset",
	AlarmStalled:         "pump motor stalled",
	AlarmTimeout:         "safe mode communications timeout",
	AlarmProgramError:    "pumping program error",
	AlarmPhaseOutOfRange: "pumping program phase out of range",
}

func (c AlarmCode) String() string {
	if c < AlarmReset || c > AlarmPhaseOutOfRange {
		return fmt.Sprintf("AlarmCode(%d)", int(c))
	}
	return alarmMessages[c]
}

// AlarmError is a fault reported by the pump itself. Terminal for the
// in-flight command; never retried silently.
type AlarmError struct {
	Code AlarmCode
}

func (e *AlarmError) Error() string {
	return "pump alarm: " + e.Code.String()
}
