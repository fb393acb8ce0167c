// Package errors provides custom storage error types.
package errors

import (
	"fmt"
)

type (
	AlreadyExistsError struct {
		Err error
		ID  string
	}
	ExecutionPSQLError struct {
		Err error
	}
	ScanningPSQLError struct {
		Err error
	}
	ContextTimeoutExceededError struct {
		Err error
	}
	NotFoundError struct {
		Err    error
		Entity string
		ID     string
	}
	AlreadyRentedError struct {
		AccountID int64
	}
	// TransientStorageError marks a retryable infrastructure failure.
	TransientStorageError struct {
		Err error
	}
)

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s: already exists", e.ID)
}

func (e *ExecutionPSQLError) Error() string {
	return fmt.Sprintf("%s: could not execute", e.Err.Error())
}

func (e *ExecutionPSQLError) Unwrap() error { return e.Err }

func (e *ScanningPSQLError) Error() string {
	return fmt.Sprintf("%s: could not scan", e.Err.Error())
}

func (e *ScanningPSQLError) Unwrap() error { return e.Err }

func (e *ContextTimeoutExceededError) Error() string {
	return fmt.Sprintf("%s: context timeout exceeded", e.Err.Error())
}

func (e *ContextTimeoutExceededError) Unwrap() error { return e.Err }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Entity, e.ID)
}

func (e *AlreadyRentedError) Error() string {
	return fmt.Sprintf("account %d: already rented", e.AccountID)
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("%s: transient storage failure", e.Err.Error())
}

func (e *TransientStorageError) Unwrap() error { return e.Err }
