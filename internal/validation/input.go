package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/models"
)

// Константы валидации
const (
	MinSkillTitleLength       = 3
	MaxSkillTitleLength       = 100
	MinExperienceLength       = 1
	MaxExperienceLength       = 500
	MaxSkillDescriptionLength = 2000
	MaxCityLength             = 100
	MinDisplayNameLength      = 1
	MaxDisplayNameLength      = 100
	MaxBioLength              = 1000
	MinMessageLength          = 1
	MaxMessageLength          = 4000
	MaxReviewCommentLength    = 1000
	MinScore                  = 1
	MaxScore                  = 5
	MaxPhotos                 = 10
	MinPrice                  = 0.0
	MaxPrice                  = 10000000.0 // 10 миллионов
)

// Допустимые темы оформления профиля.
var Themes = map[string]struct{}{
	"light":  {},
	"dark":   {},
	"system": {},
}

var accentColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateSkillTitle проверяет название умейки.
func ValidateSkillTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("название умейки обязательно")
	}
	return ValidateLength("название умейки", title, MinSkillTitleLength, MaxSkillTitleLength)
}

// ValidateExperience проверяет описание опыта.
func ValidateExperience(experience string) error {
	experience = strings.TrimSpace(experience)
	if experience == "" {
		return fmt.Errorf("опыт обязателен")
	}
	return ValidateLength("опыт", experience, MinExperienceLength, MaxExperienceLength)
}

// ValidateSkillDescription проверяет описание умейки.
func ValidateSkillDescription(description string) error {
	return ValidateLength("описание", strings.TrimSpace(description), 0, MaxSkillDescriptionLength)
}

// ValidateCategory проверяет код рубрики.
func ValidateCategory(category string) error {
	if !models.IsValidCategory(category) {
		return fmt.Errorf("неизвестная категория %q", category)
	}
	return nil
}

// ValidatePrice проверяет цену.
func ValidatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("некорректная цена")
	}
	if price < MinPrice {
		return fmt.Errorf("цена не может быть отрицательной")
	}
	if price > MaxPrice {
		return fmt.Errorf("цена не может превышать %.0f", MaxPrice)
	}
	return nil
}

// ValidateGeo проверяет координаты: либо обе, либо ни одной.
func ValidateGeo(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return fmt.Errorf("широта и долгота задаются вместе")
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return fmt.Errorf("широта должна быть в диапазоне [-90, 90]")
	}
	if *lng < -180 || *lng > 180 {
		return fmt.Errorf("долгота должна быть в диапазоне [-180, 180]")
	}
	return nil
}

// ValidateCity проверяет город.
func ValidateCity(city *string) error {
	if city != nil && *city != "" {
		return ValidateLength("город", strings.TrimSpace(*city), 0, MaxCityLength)
	}
	return nil
}

// ValidatePhotoIDs проверяет список фотографий.
func ValidatePhotoIDs(ids []string) error {
	if len(ids) > MaxPhotos {
		return fmt.Errorf("можно прикрепить не более %d фотографий", MaxPhotos)
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("некорректный идентификатор фото %q", id)
		}
	}
	return nil
}

// ValidateDisplayName проверяет отображаемое имя.
func ValidateDisplayName(displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("отображаемое имя обязательно")
	}
	return ValidateLength("отображаемое имя", displayName, MinDisplayNameLength, MaxDisplayNameLength)
}

// ValidateBio проверяет рассказ о себе.
func ValidateBio(bio *string) error {
	if bio != nil && *bio != "" {
		return ValidateLength("о себе", strings.TrimSpace(*bio), 0, MaxBioLength)
	}
	return nil
}

// ValidateTheme проверяет тему оформления.
func ValidateTheme(theme string) error {
	if _, ok := Themes[theme]; !ok {
		return fmt.Errorf("неизвестная тема %q", theme)
	}
	return nil
}

// ValidateAccentColor проверяет цвет в формате #RRGGBB.
func ValidateAccentColor(color string) error {
	if !accentColorRegex.MatchString(color) {
		return fmt.Errorf("цвет должен быть в формате #RRGGBB")
	}
	return nil
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}
	return ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength)
}

// ValidateScore проверяет оценку по одному измерению.
func ValidateScore(fieldName string, score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%s: оценка должна быть от %d до %d", fieldName, MinScore, MaxScore)
	}
	return nil
}

// ValidateReviewComment проверяет комментарий к отзыву.
func ValidateReviewComment(comment *string) error {
	if comment != nil {
		return ValidateLength("комментарий", strings.TrimSpace(*comment), 0, MaxReviewCommentLength)
	}
	return nil
}
