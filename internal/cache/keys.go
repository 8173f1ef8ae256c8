package cache

import (
	"strconv"
	"strings"

	"github.com/umeyka/umeyka-backend/internal/models"
)

// SkillSearchKey строит ключ кэша выдачи по нормализованному фильтру.
func SkillSearchKey(f models.SkillFilter) string {
	var b strings.Builder
	b.WriteString(PrefixSkillSearch)
	b.WriteString("q=")
	b.WriteString(strings.ToLower(strings.TrimSpace(f.Query)))
	b.WriteString("|c=")
	b.WriteString(f.Category)
	b.WriteString("|city=")
	b.WriteString(strings.ToLower(strings.TrimSpace(f.City)))
	b.WriteString("|min=")
	b.WriteString(floatPtr(f.MinPrice))
	b.WriteString("|max=")
	b.WriteString(floatPtr(f.MaxPrice))
	b.WriteString("|r=")
	b.WriteString(floatPtr(f.MinRating))
	b.WriteString("|s=")
	b.WriteString(f.Sort)
	b.WriteString("|l=")
	b.WriteString(strconv.Itoa(f.Limit))
	b.WriteString("|o=")
	b.WriteString(strconv.Itoa(f.Offset))
	return b.String()
}

func floatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
