package idset

import "errors"

var (
	// ErrMalformedInput reports a buffer that is too short or ends in
	// the middle of a command.
	ErrMalformedInput = errors.New("idset: malformed input")
	// ErrUnknownCommand reports a GLOBSET opcode outside the defined set.
	ErrUnknownCommand = errors.New("idset: unknown GLOBSET command")
	// ErrInvariantViolation reports a prefix stack pushed past six bytes
	// or popped while empty.
	ErrInvariantViolation = errors.New("idset: GLOBSET stack invariant violated")
)
