package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"

	"github.com/umeyka/umeyka-backend/internal/logger"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/storage"
)

// sniffLen - сколько байт читаем для определения типа.
const sniffLen = 512

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type MediaRepository interface {
	Create(ctx context.Context, media *models.MediaFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FileStore - файловое хранилище фотографий.
type FileStore interface {
	Save(ctx context.Context, userID uuid.UUID, ext string, r io.Reader) (string, int64, error)
	Delete(ctx context.Context, relativePath string) error
}

type MediaService struct {
	repo  MediaRepository
	files FileStore
}

func NewMediaService(repo MediaRepository, files FileStore) *MediaService {
	return &MediaService{repo: repo, files: files}
}

// UploadPhoto проверяет тип по магическим байтам и сохраняет фото.
func (s *MediaService) UploadPhoto(ctx context.Context, userID uuid.UUID, r io.Reader) (*models.MediaFile, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	if n == 0 {
		return nil, apperror.Validation("файл не может быть пустым")
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil, apperror.Validation("не удалось определить тип файла, разрешены только изображения")
	}
	if !allowedImageTypes[kind.MIME.Value] {
		return nil, apperror.Validation(fmt.Sprintf("неподдерживаемый тип файла %s", kind.MIME.Value))
	}

	path, size, err := s.files.Save(ctx, userID, kind.Extension, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperror.Validation("файл превышает допустимый размер")
		}
		return nil, apperror.Internal(err)
	}

	media := &models.MediaFile{
		UserID:   &userID,
		FilePath: path,
		FileType: kind.MIME.Value,
		FileSize: size,
		IsPublic: true,
	}
	if err := s.repo.Create(ctx, media); err != nil {
		s.removeFile(ctx, path)
		return nil, translate(err)
	}
	return media.WithURL(), nil
}

// Delete удаляет файл владельца.
func (s *MediaService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	media, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return translate(err)
	}
	if !media.IsOwnedBy(userID) {
		return apperror.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err)
	}
	s.removeFile(ctx, media.FilePath)
	return nil
}

func (s *MediaService) removeFile(ctx context.Context, path string) {
	if err := s.files.Delete(ctx, path); err != nil {
		logger.WithComponent("media").WithFields(logrus.Fields{
			"path":  path,
			"error": err.Error(),
		}).Warn("не удалось удалить файл")
	}
}
