package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/http/handlers/common"
	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/service"
)

// StarHandler - баланс звёзд и покупки за звёзды.
type StarHandler struct {
	stars *service.StarService
}

func NewStarHandler(stars *service.StarService) *StarHandler {
	return &StarHandler{stars: stars}
}

// Balance обрабатывает GET /api/stars/balance.
func (h *StarHandler) Balance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	balance, err := h.stars.Balance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"balance": balance})
}

// Transactions обрабатывает GET /api/stars/transactions.
func (h *StarHandler) Transactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.stars.Transactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// PurchasePremium обрабатывает POST /api/stars/premium.
func (h *StarHandler) PurchasePremium(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req struct {
		Months int `json:"months" binding:"required,min=1,max=12"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.stars.PurchasePremium(c.Request.Context(), userID, req.Months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Boost обрабатывает POST /api/stars/boost.
func (h *StarHandler) Boost(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req struct {
		SkillID uuid.UUID `json:"skill_id" binding:"required"`
		Days    int       `json:"days" binding:"required,min=1,max=30"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.stars.Boost(c.Request.Context(), userID, req.SkillID, req.Days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
