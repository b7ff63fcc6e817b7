package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortBuffer    = errors.New("dhcp6: buffer too short")
	ErrLengthMismatch = errors.New("dhcp6: length mismatch")
	ErrTypeMismatch   = errors.New("dhcp6: type code mismatch")
	ErrFixedLength    = errors.New("dhcp6: wrong length for fixed size element")
	ErrContainment    = errors.New("dhcp6: containment constraint violated")
	ErrOutOfRange     = errors.New("dhcp6: value out of range")
	ErrInvalidAddress = errors.New("dhcp6: invalid address")
	ErrInvalidValue   = errors.New("dhcp6: invalid value")
)

// ParseError reports malformed wire data. Offset is relative to the buffer
// handed to the registry entry point that failed.
type ParseError struct {
	Element string
	Offset  int
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s at offset %d: %v", e.Element, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a value that cannot be put on the wire as is.
type ValidationError struct {
	Element string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Element, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(element string, cause error, format string, args ...any) error {
	return &ValidationError{
		Element: element,
		Err:     fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cause),
	}
}

func shortPayload(element string, have, want int) error {
	return fmt.Errorf("%w: %s payload has %d bytes, need at least %d", ErrShortBuffer, element, have, want)
}
