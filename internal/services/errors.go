package services

import (
	"errors"

	apperrors "github.com/welldanyogia/mailpilot-backend/internal/errors"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
)

// mapRepoError converts repository sentinels into the application taxonomy.
// notFound is the resource-specific not-found error to report.
func mapRepoError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrStaleState):
		return apperrors.ErrInvalidState
	case errors.Is(err, repository.ErrDuplicateEntry):
		return apperrors.ErrDuplicateEntry
	}
	return err
}
