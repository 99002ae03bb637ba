package models

import (
	"errors"
	"fmt"
)

// Every rejected operation reports exactly one of these kinds. Callers match
// with errors.Is; the HTTP layer maps them to status codes.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidState   = errors.New("task is not in the required status")
	ErrUnauthorized   = errors.New("caller is not allowed to perform this operation")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTransferFailed = errors.New("value transfer failed")
)

func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}
