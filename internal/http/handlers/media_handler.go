package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umeyka/umeyka-backend/internal/http/handlers/common"
	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/service"
)

// MediaHandler управляет загрузкой и удалением фотографий.
type MediaHandler struct {
	media    *service.MediaService
	maxBytes int64
}

func NewMediaHandler(media *service.MediaService, maxBytes int64) *MediaHandler {
	return &MediaHandler{media: media, maxBytes: maxBytes}
}

// UploadPhoto обрабатывает POST /api/media/photos (multipart, поле file).
func (h *MediaHandler) UploadPhoto(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.maxBytes > 0 {
		// запас на заголовки multipart
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperror.Validation("поле file обязательно"))
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, apperror.Validation("файл превышает допустимый размер"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, apperror.New(apperror.ErrCodeBadRequest, "не удалось прочитать файл"))
		return
	}
	defer src.Close()

	media, err := h.media.UploadPhoto(c.Request.Context(), userID, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, media)
}

// DeleteMedia обрабатывает DELETE /api/media/:id.
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.media.Delete(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
