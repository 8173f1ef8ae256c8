package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/umeyka/umeyka-backend/internal/http/handlers/common"
	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/service"
)

type SkillHandler struct {
	skills *service.SkillService
}

func NewSkillHandler(skills *service.SkillService) *SkillHandler {
	return &SkillHandler{skills: skills}
}

type createSkillRequest struct {
	Skill       string   `json:"skill" binding:"required"`
	Experience  string   `json:"experience" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" binding:"required,skill_category"`
	Price       float64  `json:"price" binding:"gte=0"`
	City        *string  `json:"city"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	PhotoIDs    []string `json:"photo_ids"`
}

type updateSkillRequest struct {
	Skill       *string  `json:"skill"`
	Experience  *string  `json:"experience"`
	Description *string  `json:"description"`
	Category    *string  `json:"category" binding:"omitempty,skill_category"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	City        *string  `json:"city"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	PhotoIDs    []string `json:"photo_ids"`
	ClearGeo    bool     `json:"clear_geo"`
}

// Create обрабатывает POST /api/skills.
func (h *SkillHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createSkillRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	skill, err := h.skills.Create(c.Request.Context(), userID, service.CreateSkillInput{
		Skill:       req.Skill,
		Experience:  req.Experience,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		City:        req.City,
		Lat:         req.Lat,
		Lng:         req.Lng,
		PhotoIDs:    req.PhotoIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, skill)
}

// List обрабатывает GET /api/skills.
func (h *SkillHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	filter := models.SkillFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		City:     c.Query("city"),
		Sort:     c.Query("sort"),
		Limit:    limit,
		Offset:   offset,
	}

	var err error
	if filter.MinPrice, err = floatQuery(c, "min_price"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MaxPrice, err = floatQuery(c, "max_price"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MinRating, err = floatQuery(c, "min_rating"); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.skills.Search(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, limit, offset)
}

// Nearby обрабатывает GET /api/skills/nearby?lat&lng&radius_km.
func (h *SkillHandler) Nearby(c *gin.Context) {
	lat, err := floatQuery(c, "lat")
	if err != nil {
		response.Error(c, err)
		return
	}
	lng, err := floatQuery(c, "lng")
	if err != nil {
		response.Error(c, err)
		return
	}
	if lat == nil || lng == nil {
		response.Error(c, apperror.Validation("параметры lat и lng обязательны"))
		return
	}
	radius, err := floatQuery(c, "radius_km")
	if err != nil {
		response.Error(c, err)
		return
	}
	var radiusKm float64
	if radius != nil {
		radiusKm = *radius
	}

	items, err := h.skills.Nearby(c.Request.Context(), *lat, *lng, radiusKm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// Get обрабатывает GET /api/skills/:id.
func (h *SkillHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	skill, err := h.skills.Get(c.Request.Context(), id, common.OptionalUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, skill)
}

// Update обрабатывает PUT /api/skills/:id.
func (h *SkillHandler) Update(c *gin.Context) {
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

	var req updateSkillRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	skill, err := h.skills.Update(c.Request.Context(), id, userID, models.SkillUpdate{
		Skill:       req.Skill,
		Experience:  req.Experience,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		City:        req.City,
		Lat:         req.Lat,
		Lng:         req.Lng,
		PhotoIDs:    req.PhotoIDs,
		ClearGeo:    req.ClearGeo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, skill)
}

// Delete обрабатывает DELETE /api/skills/:id.
func (h *SkillHandler) Delete(c *gin.Context) {
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

	if err := h.skills.Delete(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Contact обрабатывает POST /api/skills/:id/contact.
func (h *SkillHandler) Contact(c *gin.Context) {
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

	result, err := h.skills.Contact(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result)
		return
	}
	response.Success(c, result)
}

// ListMine обрабатывает GET /api/skills/my.
func (h *SkillHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	skills, err := h.skills.ListMine(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, skills)
}

// ListByUser обрабатывает GET /api/users/:id/skills.
func (h *SkillHandler) ListByUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	skills, err := h.skills.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, skills)
}

// Categories обрабатывает GET /api/skills/categories.
func (h *SkillHandler) Categories(c *gin.Context) {
	response.Success(c, h.skills.Categories())
}

// floatQuery читает необязательный числовой параметр.
func floatQuery(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperror.Validation("параметр " + key + " должен быть числом")
	}
	return &v, nil
}
