package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/referral/models"
	"merge-verse-backend/internal/features/referral/service"
)

type ReferralHandler struct {
	service service.ReferralService
}

func NewReferralHandler(service service.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		service: service,
	}
}

func (h *ReferralHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	referrals := router.Group("/referrals")
	{
		referrals.GET("/me", h.getMyStats)
	}

	// Админские маршруты
	admin := router.Group("/referrals")
	admin.Use(middleware.RequireAdmin(cfg))
	{
		admin.GET("/settings", h.getSettings)
		admin.PUT("/settings", h.updateSetting)
	}
}

// @Summary My referral stats
// @Description Get referral count and accrued earnings
// @Tags referrals
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.ReferralStats
// @Router /referrals/me [get]
func (h *ReferralHandler) getMyStats(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// @Summary Referral settings
// @Description Get referral program settings (admin only)
// @Tags referrals
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Setting
// @Router /referrals/settings [get]
func (h *ReferralHandler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetSettings())
}

// @Summary Update referral setting
// @Description Update a referral program setting (admin only)
// @Tags referrals
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param setting body models.UpdateSettingInput true "Setting"
// @Success 200 {object} map[string]bool
// @Router /referrals/settings [put]
func (h *ReferralHandler) updateSetting(c *gin.Context) {
	var input models.UpdateSettingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.UpdateSetting(c.Request.Context(), &input); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownSetting):
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "referral request failed"))
	}
}
