package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidStoreType = errors.New("operation not supported by this store type")
	ErrNetwork          = errors.New("network error")
	ErrPartialFailure   = errors.New("some mutations failed to push")
	ErrPendingMutations = errors.New("collection has pending mutations, push them first")

	// ErrTimeout also matches ErrNetwork.
	ErrTimeout error = timeoutError{}
)

type timeoutError struct{}

func (timeoutError) Error() string        { return "operation timed out" }
func (timeoutError) Is(target error) bool { return target == ErrNetwork }

// OperationError reports a push, pull, sync or purge that stopped early,
// along with whatever it had done until then.
type OperationError struct {
	Op   string
	Push *PushResponse
	Pull *PullResponse
	Err  error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Op)
	if e.Push != nil {
		fmt.Fprintf(&b, " (pushed %d/%d)", e.Push.SuccessCount, e.Push.Attempted)
	}
	if e.Pull != nil {
		fmt.Fprintf(&b, " (pulled %d)", e.Pull.Count)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error { return e.Err }

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func invalidStoreType(op string, st StoreType) error {
	return fmt.Errorf("%s on %s store: %w", op, st, ErrInvalidStoreType)
}

func validateQuery(q *query.Query) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// remoteError classifies an error coming from the network manager or from
// the caller's context.
func remoteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, network.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.Is(err, network.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, network.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func asTimeout(err error) error {
	if errors.Is(err, ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTimeout, err)
}
