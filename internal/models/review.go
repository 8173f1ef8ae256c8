package models

import (
	"time"

	"github.com/google/uuid"
)

// Review - многомерная оценка работы мастера клиентом.
type Review struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	DealID        *uuid.UUID `db:"deal_id" json:"deal_id,omitempty"`
	ChatID        *uuid.UUID `db:"chat_id" json:"chat_id,omitempty"`
	SkillID       *uuid.UUID `db:"skill_id" json:"skill_id,omitempty"`
	ReviewerID    uuid.UUID  `db:"reviewer_id" json:"reviewer_id"`
	ReviewedID    uuid.UUID  `db:"reviewed_id" json:"reviewed_id"`
	Quality       int        `db:"quality" json:"quality"`
	Speed         int        `db:"speed" json:"speed"`
	Communication int        `db:"communication" json:"communication"`
	Price         int        `db:"price" json:"price"`
	Overall       float64    `db:"overall" json:"overall"`
	Comment       *string    `db:"comment" json:"comment,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ReviewWithAuthor добавляет имя автора для отображения.
type ReviewWithAuthor struct {
	Review
	ReviewerName string `db:"reviewer_name" json:"reviewer_name"`
}

// RatingSummary - средние значения по каждому измерению.
type RatingSummary struct {
	Count         int     `db:"count" json:"count"`
	Overall       float64 `db:"overall" json:"overall"`
	Quality       float64 `db:"quality" json:"quality"`
	Speed         float64 `db:"speed" json:"speed"`
	Communication float64 `db:"communication" json:"communication"`
	Price         float64 `db:"price" json:"price"`
}
