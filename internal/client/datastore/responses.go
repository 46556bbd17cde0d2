package datastore

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
)

// MutationError is a queued mutation the backend did not accept.
type MutationError struct {
	Mutation models.Mutation
	Err      error
}

func (e MutationError) Error() string {
	return fmt.Sprintf("%s %s[%s] (seq %d): %v",
		e.Mutation.Operation, e.Mutation.Collection, e.Mutation.EntityID, e.Mutation.Seq, e.Err)
}

func (e MutationError) Unwrap() error { return e.Err }

// PushResponse summarizes one drain of a queue. Attempted always equals
// SuccessCount + len(Errors).
type PushResponse struct {
	Attempted    int
	SuccessCount int
	Errors       []MutationError
}

// Err is nil when every attempted mutation succeeded and an
// ErrPartialFailure joined with the individual failures otherwise.
func (r *PushResponse) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors)+1)
	errs = append(errs, fmt.Errorf("%w: %d of %d", ErrPartialFailure, len(r.Errors), r.Attempted))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

type PullResponse struct {
	Entities []models.Entity
	// Count is the number of entities the backend returned.
	Count int
	// Removed counts cache rows dropped because the backend no longer has
	// them.
	Removed int
}

type SyncResponse struct {
	Push *PushResponse
	Pull *PullResponse
}
