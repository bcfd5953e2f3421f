package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/pack/models"
	"merge-verse-backend/internal/features/pack/service"
)

type PackHandler struct {
	service service.PackService
}

func NewPackHandler(service service.PackService) *PackHandler {
	return &PackHandler{
		service: service,
	}
}

func (h *PackHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	packs := router.Group("/packs")
	{
		packs.GET("", h.listConfigs)
		packs.POST("/open", h.openPaid)
		packs.POST("/free", h.openFree)
		packs.GET("/compensations", h.listCompensations)
		packs.POST("/compensations/open", h.openCompensation)
	}
}

// @Summary Pack catalog
// @Description Get pack compositions and prices
// @Tags packs
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Config
// @Router /packs [get]
func (h *PackHandler) listConfigs(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetConfigs())
}

// @Summary Open paid pack
// @Description Buy and open a pack; the price is debited from the balance
// @Tags packs
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param pack body models.OpenPackInput true "Pack type"
// @Success 200 {array} models.DrawnItem
// @Failure 400 {object} map[string]string
// @Router /packs/open [post]
func (h *PackHandler) openPaid(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.OpenPackInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	items, err := h.service.OpenPaid(c.Request.Context(), userID, input.Type)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// @Summary Open free daily pack
// @Description Open the daily free pack; available once per UTC day
// @Tags packs
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.DrawnItem
// @Failure 400 {object} map[string]string
// @Router /packs/free [post]
func (h *PackHandler) openFree(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	items, err := h.service.OpenFree(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// @Summary My compensation credits
// @Tags packs
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Compensation
// @Router /packs/compensations [get]
func (h *PackHandler) listCompensations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	compensations, err := h.service.GetCompensations(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, compensations)
}

// @Summary Open compensation pack
// @Description Spend one compensation credit to open the matching pack
// @Tags packs
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param pack body models.OpenPackInput true "Pack type"
// @Success 200 {array} models.DrawnItem
// @Failure 400 {object} map[string]string
// @Router /packs/compensations/open [post]
func (h *PackHandler) openCompensation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.OpenPackInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	items, err := h.service.OpenCompensation(c.Request.Context(), userID, input.Type)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownPack):
		c.Error(apperrors.NewNotFoundError("pack"))
	case errors.Is(err, service.ErrInsufficientBalance):
		c.Error(apperrors.NewInsufficientError("balance"))
	case errors.Is(err, service.ErrNoCompensation):
		c.Error(apperrors.NewInsufficientError("compensations"))
	case errors.Is(err, service.ErrPackNotPurchasable), errors.Is(err, service.ErrAlreadyOpenedToday):
		c.Error(apperrors.NewInvalidStateError(err.Error()))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "pack request failed"))
	}
}
