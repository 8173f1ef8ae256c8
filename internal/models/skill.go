package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Skill - объявление мастера ("умейка").
type Skill struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	OwnerID      uuid.UUID      `db:"owner_id" json:"owner_id"`
	Skill        string         `db:"skill" json:"skill"`
	Experience   string         `db:"experience" json:"experience"`
	Description  string         `db:"description" json:"description"`
	Category     string         `db:"category" json:"category"`
	Price        float64        `db:"price" json:"price"`
	City         *string        `db:"city" json:"city,omitempty"`
	Lat          *float64       `db:"lat" json:"lat,omitempty"`
	Lng          *float64       `db:"lng" json:"lng,omitempty"`
	PhotoIDs     pq.StringArray `db:"photo_ids" json:"photo_ids"`
	Rating       float64        `db:"rating" json:"rating"`
	ReviewsCount int            `db:"reviews_count" json:"reviews_count"`
	Views        int            `db:"views" json:"views"`
	Contacts     int            `db:"contacts" json:"contacts"`
	IsActive     bool           `db:"is_active" json:"is_active"`
	BoostedUntil *time.Time     `db:"boosted_until" json:"boosted_until,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasLocation сообщает, заданы ли координаты.
func (s *Skill) HasLocation() bool {
	return s.Lat != nil && s.Lng != nil
}

// IsBoosted - поднято ли объявление в выдаче на момент now.
func (s *Skill) IsBoosted(now time.Time) bool {
	return s.BoostedUntil != nil && s.BoostedUntil.After(now)
}

// SkillUpdate - частичное обновление, nil поля не меняются.
type SkillUpdate struct {
	Skill       *string
	Experience  *string
	Description *string
	Category    *string
	Price       *float64
	City        *string
	Lat         *float64
	Lng         *float64
	PhotoIDs    []string
	ClearGeo    bool
}

// Сортировки выдачи.
const (
	SkillSortDate      = "date"
	SkillSortPriceAsc  = "price_asc"
	SkillSortPriceDesc = "price_desc"
	SkillSortRating    = "rating"
	SkillSortPopular   = "popular"
)

// ValidSkillSorts список допустимых сортировок.
var ValidSkillSorts = map[string]struct{}{
	SkillSortDate:      {},
	SkillSortPriceAsc:  {},
	SkillSortPriceDesc: {},
	SkillSortRating:    {},
	SkillSortPopular:   {},
}

// SkillFilter - параметры поиска по объявлениям.
type SkillFilter struct {
	Query     string
	Category  string
	City      string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	Sort      string
	Limit     int
	Offset    int
}

// SkillWithDistance - результат поиска поблизости.
type SkillWithDistance struct {
	Skill
	DistanceKm float64 `db:"distance_km" json:"distance_km"`
}

// Category - рубрика объявлений.
type Category struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

// Categories - известные рубрики в порядке показа.
var Categories = []Category{
	{Code: "repair", Title: "Ремонт и строительство", Icon: "🔨"},
	{Code: "beauty", Title: "Красота и здоровье", Icon: "💅"},
	{Code: "education", Title: "Репетиторы и обучение", Icon: "📚"},
	{Code: "it", Title: "IT и компьютеры", Icon: "💻"},
	{Code: "design", Title: "Дизайн и творчество", Icon: "🎨"},
	{Code: "household", Title: "Бытовые услуги", Icon: "🧹"},
	{Code: "transport", Title: "Перевозки и курьеры", Icon: "🚚"},
	{Code: "photo", Title: "Фото и видео", Icon: "📷"},
	{Code: "events", Title: "Праздники и мероприятия", Icon: "🎉"},
	{Code: "pets", Title: "Животные", Icon: "🐾"},
	{Code: "other", Title: "Другое", Icon: "✨"},
}

// IsValidCategory проверяет код рубрики.
func IsValidCategory(code string) bool {
	for _, c := range Categories {
		if c.Code == code {
			return true
		}
	}
	return false
}
