package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sitechron/fieldsync/internal/models"
)

// ErrorClass separates retry-eligible failures from permanent rejections
type ErrorClass string

const (
	// ClassTransient covers network failures, timeouts and server errors;
	// the mutation stays pending and is retried on the next pass
	ClassTransient ErrorClass = "transient"
	// ClassRejected covers validation/schema rejections; retrying the same
	// payload can never succeed, so the mutation is dead-lettered
	ClassRejected ErrorClass = "rejected"
)

// Error is a classified remote store failure
type Error struct {
	Class   ErrorClass
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retry-eligible failure
func Transient(message string, err error) *Error {
	return &Error{Class: ClassTransient, Message: message, Err: err}
}

// Rejected wraps err as a permanent rejection
func Rejected(message string, err error) *Error {
	return &Error{Class: ClassRejected, Message: message, Err: err}
}

// IsTransient reports whether err is a retry-eligible remote failure
func IsTransient(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Class == ClassTransient
}

// IsRejected reports whether err is a permanent remote rejection
func IsRejected(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Class == ClassRejected
}

// Store is the remote system of record, reached only through this interface.
// Insert must honor the idempotency key: submitting the same key twice yields
// one remote record and no error on the second attempt.
type Store interface {
	Insert(ctx context.Context, kind models.EntityKind, payload json.RawMessage, idempotencyKey string) (string, error)
	FindActiveEntry(ctx context.Context, userID string) (*models.TimeEntry, error)
	Ping(ctx context.Context) error
}
