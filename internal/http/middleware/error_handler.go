package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/logger"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
)

// ErrorHandler рендерит ошибку, добавленную через c.Error, если ответ ещё не отправлен.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}

// Recovery превращает панику обработчика в 500 с конвертом ошибки.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithComponent("http").WithFields(logrus.Fields{
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
					"panic":  fmt.Sprint(r),
					"stack":  string(debug.Stack()),
				}).Error("паника в обработчике")

				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.Abort(c, http.StatusInternalServerError, string(apperror.ErrCodeInternal), "внутренняя ошибка сервера")
			}
		}()
		c.Next()
	}
}
