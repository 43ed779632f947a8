package service

import (
	"errors"
	"net/http"

	accountrepo "github.com/AlibekovAA/fincore/internal/account/repository"
	commonerrors "github.com/AlibekovAA/fincore/internal/common/errors"
)

// mapRepositoryError turns storage errors into the service taxonomy. Anything
// unrecognised is a persistence failure, never an auth rejection.
func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case commonerrors.IsDomainError(err) && !errors.Is(err, commonerrors.ErrCircuitOpen):
		return err
	case errors.Is(err, commonerrors.ErrCircuitOpen):
		return ErrServiceUnavailable.WithCause(err)
	case errors.Is(err, accountrepo.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, accountrepo.ErrVersionConflict):
		return ErrSessionConflict.WithCause(err)
	case errors.Is(err, accountrepo.ErrEmailExists):
		return ErrEmailTaken
	case errors.Is(err, accountrepo.ErrTelephoneExists):
		return ErrTelephoneTaken
	default:
		return ErrPersistence.WithCause(err)
	}
}

func newInternalError(code, message string, cause error) commonerrors.DomainError {
	err := commonerrors.NewDomainError(
		code,
		commonerrors.CategoryInternal,
		http.StatusInternalServerError,
		message,
	)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
