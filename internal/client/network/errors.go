package network

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound     = errors.New("entity not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("server unavailable")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")

	// ErrTimeout also matches ErrUnavailable.
	ErrTimeout error = timeoutError{}
)

type timeoutError struct{}

func (timeoutError) Error() string        { return "request timed out" }
func (timeoutError) Is(target error) bool { return target == ErrUnavailable }

// StatusError is an error response the backend sent that no sentinel covers.
type StatusError struct {
	Code        int
	Name        string
	Description string
}

func (e *StatusError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("backend error %d %s: %s", e.Code, e.Name, e.Description)
	}
	return fmt.Sprintf("backend error %d %s", e.Code, e.Name)
}

// transportError maps a failure to reach the backend.
func transportError(op string, err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}
