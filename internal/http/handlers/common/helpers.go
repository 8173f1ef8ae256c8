package common

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/http/middleware"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/validation"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// CurrentUserID достаёт пользователя, положенного AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	return userID, nil
}

// OptionalUserID возвращает пользователя, если запрос авторизован.
func OptionalUserID(c *gin.Context) *uuid.UUID {
	userID, err := CurrentUserID(c)
	if err != nil {
		return nil
	}
	return &userID
}

// ParseUUIDParam разбирает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeBadRequest, "параметр "+paramName+" должен быть валидным UUID")
	}
	return parsed, nil
}

// BindJSON разбирает тело и переводит ошибки валидатора в VALIDATION_ERROR.
func BindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.Validation(validation.Message(err))
	}
	return nil
}

// BindQuery разбирает параметры строки запроса.
func BindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return apperror.Validation(validation.Message(err))
	}
	return nil
}

// ParseIntQuery читает целый параметр запроса с запасным значением.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination читает limit и offset с умолчаниями.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", DefaultLimit)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return
}
