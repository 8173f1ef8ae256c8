package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/http/handlers/common"
	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/service"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type createReviewRequest struct {
	DealID        *uuid.UUID `json:"deal_id"`
	ChatID        *uuid.UUID `json:"chat_id"`
	Quality       int        `json:"quality" binding:"required,min=1,max=5"`
	Speed         int        `json:"speed" binding:"required,min=1,max=5"`
	Communication int        `json:"communication" binding:"required,min=1,max=5"`
	Price         int        `json:"price" binding:"required,min=1,max=5"`
	Comment       *string    `json:"comment" binding:"omitempty,max=1000"`
}

// Create обрабатывает POST /api/reviews.
func (h *ReviewHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createReviewRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	review, err := h.reviews.Create(c.Request.Context(), userID, service.CreateReviewInput{
		DealID:        req.DealID,
		ChatID:        req.ChatID,
		Quality:       req.Quality,
		Speed:         req.Speed,
		Communication: req.Communication,
		Price:         req.Price,
		Comment:       req.Comment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}

// ListUserReviews обрабатывает GET /api/users/:id/reviews.
func (h *ReviewHandler) ListUserReviews(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	result, err := h.reviews.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListSkillReviews обрабатывает GET /api/skills/:id/reviews.
func (h *ReviewHandler) ListSkillReviews(c *gin.Context) {
	skillID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.reviews.ListBySkill(c.Request.Context(), skillID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}
