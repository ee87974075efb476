package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownJar      = errors.New("unknown jar")
	ErrNotFound        = errors.New("not found")
	ErrInvalidBudget   = errors.New("invalid budget")
	ErrInvalidGoal     = errors.New("invalid goal")
	ErrInvalidWindow   = errors.New("invalid window")
	ErrInvalidTxType   = errors.New("invalid transaction type")
	ErrSameJarTransfer = errors.New("transfer source and target jar must differ")
	ErrEmptyUser       = errors.New("empty user id")
)

// StorageError reports a failed persistence call. It is never retried by
// the ledger; callers decide whether to re-invoke.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err (or anything it wraps) is a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ClassificationError rejects a malformed record from the text classifier.
type ClassificationError struct {
	Field  string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification rejected: %s %s", e.Field, e.Reason)
}

func IsClassificationError(err error) bool {
	var ce *ClassificationError
	return errors.As(err, &ce)
}

// IsValidation reports errors caused by caller input rather than the backend.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrUnknownJar),
		errors.Is(err, ErrInvalidBudget),
		errors.Is(err, ErrInvalidGoal),
		errors.Is(err, ErrInvalidWindow),
		errors.Is(err, ErrInvalidTxType),
		errors.Is(err, ErrSameJarTransfer),
		errors.Is(err, ErrEmptyUser),
		IsClassificationError(err):
		return true
	}
	return false
}
