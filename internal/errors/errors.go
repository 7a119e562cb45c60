package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrTemplateNotFound        = errors.New("template not found")
	ErrTemplateChannelMismatch = errors.New("template channel mismatch")
	ErrChannelUnsupported      = errors.New("channel not supported")
	ErrDeliveryFailure         = errors.New("delivery failure")
	ErrRecordNotFound          = errors.New("notification not found")
	ErrTerminalState           = errors.New("notification already in terminal state")
	ErrConflict                = errors.New("conflict")
	ErrUnauthorized            = errors.New("unauthorized")
)

// NewInvalidRequest wraps ErrInvalidRequest with a formatted reason
func NewInvalidRequest(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, a...))
}

// NewNotFound wraps ErrRecordNotFound
func NewNotFound(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRecordNotFound, fmt.Sprintf(format, a...))
}

func NewInternal(format string, a ...interface{}) error {
	return fmt.Errorf("INTERNAL: "+format, a...)
}

func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminalState)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
