package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge - файл больше допустимого размера.
var ErrTooLarge = errors.New("storage: file too large")

// PhotoStorage хранит фотографии на диске, в каталоге пользователя.
type PhotoStorage struct {
	rootPath       string
	maxUploadBytes int64
}

func NewPhotoStorage(rootPath string, maxUploadMB int64) (*PhotoStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &PhotoStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// MaxBytes - лимит размера одного файла.
func (s *PhotoStorage) MaxBytes() int64 {
	return s.maxUploadBytes
}

// Save пишет файл атомарно (через .tmp) и возвращает путь относительно корня.
// ext берётся из определённого по содержимому типа, а не из имени файла.
func (s *PhotoStorage) Save(ctx context.Context, userID uuid.UUID, ext string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	userDir := filepath.Join(s.rootPath, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать каталог пользователя: %w", err)
	}

	fileName := uuid.NewString() + "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	targetPath := filepath.Join(userDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxUploadBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка записи файла: %w", err)
	case closeErr != nil:
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка закрытия файла: %w", closeErr)
	case written > s.maxUploadBytes:
		_ = os.Remove(tempPath)
		return "", 0, ErrTooLarge
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return filepath.ToSlash(filepath.Join(userID.String(), fileName)), written, nil
}

// Delete удаляет файл. Отсутствие файла не ошибка.
func (s *PhotoStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, filepath.FromSlash(relativePath))
	if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(s.rootPath)+string(os.PathSeparator)) {
		return fmt.Errorf("storage: путь %q вне хранилища", relativePath)
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}
