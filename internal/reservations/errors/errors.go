package errors

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrSlotLocked means another creation currently holds the advisory
	// lock for the same shop/date/time slot.
	ErrSlotLocked = errors.New("slot is locked by a concurrent reservation")

	// ErrStateConflict means a conditional status update matched no
	// document: the reservation changed underneath the caller.
	ErrStateConflict = errors.New("reservation state changed concurrently")
)

// FailureKind classifies datastore failures for retry decisions.
// Classification is structural (driver predicates and server error
// codes), never based on error message text.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureDeadlock
)

// MongoDB server error codes that indicate lock contention.
const (
	codeLockTimeout   = 24
	codeLockBusy      = 46
	codeWriteConflict = 112
)

// Classify maps a datastore error to a FailureKind. Errors that are
// neither timeouts nor lock conflicts come back as FailureNone and
// must not be retried.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return FailureTimeout
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorCode(codeWriteConflict) ||
			serverErr.HasErrorCode(codeLockTimeout) ||
			serverErr.HasErrorCode(codeLockBusy) ||
			serverErr.HasErrorLabel("TransientTransactionError") {
			return FailureDeadlock
		}
	}

	return FailureNone
}

// IsTransient reports whether the error is worth another attempt.
func IsTransient(err error) bool {
	return Classify(err) != FailureNone
}
