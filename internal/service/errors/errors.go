// Package errors provides custom service error types.
package errors

import "fmt"

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	// InvalidTariffError is returned for a tariff key absent from the catalog.
	InvalidTariffError struct {
		Tariff string
	}
	// ValidationError is returned for malformed user input.
	ValidationError struct {
		Field string
		Msg   string
	}
	InvalidCredentialsError struct {
		Login string
	}
	ForbiddenError struct {
		Msg string
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *InvalidTariffError) Error() string {
	return fmt.Sprintf("unknown tariff %q", e.Tariff)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials for %s", e.Login)
}

func (e *ForbiddenError) Error() string {
	return e.Msg
}
