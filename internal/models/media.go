package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaFile описывает загруженный файл.
type MediaFile struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FilePath  string     `db:"file_path" json:"file_path"`
	FileType  string     `db:"file_type" json:"file_type"`
	FileSize  int64      `db:"file_size" json:"file_size"`
	IsPublic  bool       `db:"is_public" json:"is_public"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`

	URL string `db:"-" json:"url"`
}

// MediaURLPrefix - путь, по которому раздаются загруженные файлы.
const MediaURLPrefix = "/media/"

// WithURL заполняет публичную ссылку на файл.
func (m *MediaFile) WithURL() *MediaFile {
	m.URL = MediaURLPrefix + m.FilePath
	return m
}

// IsOwnedBy проверяет владельца файла.
func (m *MediaFile) IsOwnedBy(userID uuid.UUID) bool {
	return m.UserID != nil && *m.UserID == userID
}
