package errx

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned without calling the dependency while its breaker is open.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrNoResponse is returned when a turn finishes without a terminal message.
	ErrNoResponse = errors.New("no response produced for this turn")
	// ErrToolLoopExceeded marks a turn whose model kept requesting tools past the round-trip cap.
	ErrToolLoopExceeded = errors.New("tool round-trip limit exceeded")
)

// CircuitOpenError names the dependency whose breaker rejected the call.
type CircuitOpenError struct {
	Key string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCircuitOpen.Error(), e.Key)
}

func (e *CircuitOpenError) Unwrap() error {
	return ErrCircuitOpen
}

// InvalidResponseTypeError is returned when intent classification yields a
// value outside the known response types. It is fatal for the turn.
type InvalidResponseTypeError struct {
	Value string
}

func (e *InvalidResponseTypeError) Error() string {
	return fmt.Sprintf("invalid response type %q", e.Value)
}
