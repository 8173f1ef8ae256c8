package service

import (
	"errors"

	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/repository"
)

// translate переводит ошибки хранилища в типизированные ошибки приложения.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrSkillNotFound):
		return apperror.ErrSkillNotFound
	case errors.Is(err, repository.ErrDealNotFound):
		return apperror.ErrDealNotFound
	case errors.Is(err, repository.ErrChatNotFound):
		return apperror.ErrChatNotFound
	case errors.Is(err, repository.ErrChatAlreadyCompleted):
		return apperror.ErrChatAlreadyCompleted
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrNotificationNotFound):
		return apperror.ErrNotificationNotFound
	case errors.Is(err, repository.ErrMediaNotFound):
		return apperror.ErrMediaNotFound
	case errors.Is(err, repository.ErrSessionNotFound):
		return apperror.ErrInvalidRefreshToken
	case errors.Is(err, repository.ErrInsufficientStars):
		return apperror.ErrInsufficientStars
	case errors.Is(err, repository.ErrNotSkillOwner):
		return apperror.ErrForbidden
	case errors.Is(err, repository.ErrReviewExists):
		return apperror.ErrAlreadyReviewed
	}
	return apperror.Internal(err)
}

// normalizePage приводит пагинацию к допустимым границам.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
