package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/domain/entity"
	"github.com/umeyka/umeyka-backend/internal/http/handlers/common"
	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/service"
)

type DealHandler struct {
	deals *service.DealService
}

func NewDealHandler(deals *service.DealService) *DealHandler {
	return &DealHandler{deals: deals}
}

type createDealRequest struct {
	CounterpartyID uuid.UUID  `json:"counterparty_id" binding:"required"`
	Role           string     `json:"role" binding:"required,deal_role"`
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	Amount         float64    `json:"amount" binding:"required,gt=0"`
	DeadlineAt     *time.Time `json:"deadline_at"`
	ChatID         *uuid.UUID `json:"chat_id"`
	SkillID        *uuid.UUID `json:"skill_id"`
}

type updateDealRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Amount      *float64   `json:"amount"`
	DeadlineAt  *time.Time `json:"deadline_at"`
}

// Create обрабатывает POST /api/deals.
func (h *DealHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createDealRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	deal, err := h.deals.Create(c.Request.Context(), userID, service.CreateDealInput{
		CounterpartyID: req.CounterpartyID,
		Role:           req.Role,
		Title:          req.Title,
		Description:    req.Description,
		Amount:         req.Amount,
		DeadlineAt:     req.DeadlineAt,
		ChatID:         req.ChatID,
		SkillID:        req.SkillID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, deal)
}

// List обрабатывает GET /api/deals?status&role.
func (h *DealHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	deals, total, err := h.deals.List(c.Request.Context(), userID, service.DealListInput{
		Status: c.Query("status"),
		Role:   c.Query("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, deals, total, limit, offset)
}

// Get обрабатывает GET /api/deals/:id.
func (h *DealHandler) Get(c *gin.Context) {
	h.withDeal(c, func(id, userID uuid.UUID) (*entity.Deal, error) {
		return h.deals.Get(c.Request.Context(), id, userID)
	})
}

// Update обрабатывает PUT /api/deals/:id.
func (h *DealHandler) Update(c *gin.Context) {
	var req updateDealRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	h.withDeal(c, func(id, userID uuid.UUID) (*entity.Deal, error) {
		return h.deals.Update(c.Request.Context(), id, userID, entity.DealEdit{
			Title:       req.Title,
			Description: req.Description,
			Amount:      req.Amount,
			DeadlineAt:  req.DeadlineAt,
		})
	})
}

// Sign обрабатывает POST /api/deals/:id/sign.
func (h *DealHandler) Sign(c *gin.Context) {
	h.withDeal(c, func(id, userID uuid.UUID) (*entity.Deal, error) {
		return h.deals.Sign(c.Request.Context(), id, userID)
	})
}

// Complete обрабатывает POST /api/deals/:id/complete.
func (h *DealHandler) Complete(c *gin.Context) {
	h.withDeal(c, func(id, userID uuid.UUID) (*entity.Deal, error) {
		return h.deals.Complete(c.Request.Context(), id, userID)
	})
}

// Cancel обрабатывает POST /api/deals/:id/cancel. Тело с причиной необязательно.
func (h *DealHandler) Cancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := common.BindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
	}
	h.withDeal(c, func(id, userID uuid.UUID) (*entity.Deal, error) {
		return h.deals.Cancel(c.Request.Context(), id, userID, req.Reason)
	})
}

func (h *DealHandler) withDeal(c *gin.Context, fn func(id, userID uuid.UUID) (*entity.Deal, error)) {
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

	deal, err := fn(id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, deal)
}
