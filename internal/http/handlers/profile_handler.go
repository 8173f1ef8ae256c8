package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/http/handlers/common"
	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/service"
)

// PresenceChecker сообщает, есть ли у пользователя открытое WebSocket подключение.
type PresenceChecker interface {
	Online(userID uuid.UUID) bool
}

// ProfileHandler отвечает за работу с профилем.
type ProfileHandler struct {
	profiles *service.ProfileService
	presence PresenceChecker
}

func NewProfileHandler(profiles *service.ProfileService, presence PresenceChecker) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, presence: presence}
}

type updateProfileRequest struct {
	DisplayName *string    `json:"display_name"`
	Bio         *string    `json:"bio"`
	City        *string    `json:"city"`
	AvatarID    *uuid.UUID `json:"avatar_id"`
	Theme       *string    `json:"theme"`
	AccentColor *string    `json:"accent_color"`
	ShowOnline  *bool      `json:"show_online"`
}

// GetMe обрабатывает GET /api/profile.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// UpdateMe обрабатывает PUT /api/profile.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req updateProfileRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), userID, models.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		City:        req.City,
		AvatarID:    req.AvatarID,
		Theme:       req.Theme,
		AccentColor: req.AccentColor,
		ShowOnline:  req.ShowOnline,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// GetUser обрабатывает GET /api/users/:id.
func (h *ProfileHandler) GetUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.profiles.GetPublic(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// статус в сети виден, только если пользователь это разрешил
	if h.presence != nil && profile.ShowOnline {
		online := h.presence.Online(userID)
		profile.IsOnline = &online
	}
	response.Success(c, profile)
}

// Referral обрабатывает GET /api/profile/referral.
func (h *ProfileHandler) Referral(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	info, err := h.profiles.Referral(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, info)
}
