package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/gift/models"
	"merge-verse-backend/internal/features/gift/service"
)

type GiftHandler struct {
	service service.GiftService
}

func NewGiftHandler(service service.GiftService) *GiftHandler {
	return &GiftHandler{
		service: service,
	}
}

func (h *GiftHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	gifts := router.Group("/gifts")
	{
		gifts.GET("", h.listGifts)
		gifts.GET("/prices", h.listPrices)
	}

	// Админские маршруты
	admin := router.Group("/gifts")
	admin.Use(middleware.RequireAdmin(cfg))
	{
		admin.POST("", h.createGift)
		admin.PUT("/prices", h.updatePrice)
		admin.PUT("/prices/vertical", h.updateVerticalPrice)
		admin.PUT("/prices/horizontal", h.updateHorizontalPrice)
		admin.POST("/reload", h.reload)
	}
}

// @Summary List gifts
// @Description Get the full gift catalog
// @Tags gifts
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Gift
// @Router /gifts [get]
func (h *GiftHandler) listGifts(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetAllGifts())
}

// @Summary List collection prize tables
// @Description Get vertical and horizontal collection prize tables
// @Tags gifts
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]interface{}
// @Router /gifts/prices [get]
func (h *GiftHandler) listPrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"vertical":   h.service.GetVerticalPrices(),
		"horizontal": h.service.GetHorizontalPrices(),
	})
}

// @Summary Create gift
// @Description Add a new gift to the catalog (admin only)
// @Tags gifts
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param gift body models.CreateGiftInput true "Gift"
// @Success 201 {object} models.Gift
// @Router /gifts [post]
func (h *GiftHandler) createGift(c *gin.Context) {
	var input models.CreateGiftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	gift, err := h.service.CreateGift(c.Request.Context(), &input)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gift)
}

// @Summary Update price
// @Description Update the item price for a rarity-level pair (admin only)
// @Tags gifts
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param price body models.UpdatePriceInput true "Price"
// @Success 200 {object} map[string]bool
// @Router /gifts/prices [put]
func (h *GiftHandler) updatePrice(c *gin.Context) {
	var input models.UpdatePriceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.UpdatePrice(c.Request.Context(), &input); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Update vertical prize
// @Description Update the vertical collection prize for a level (admin only)
// @Tags gifts
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param price body models.UpdateVerticalPriceInput true "Prize"
// @Success 200 {object} map[string]bool
// @Router /gifts/prices/vertical [put]
func (h *GiftHandler) updateVerticalPrice(c *gin.Context) {
	var input models.UpdateVerticalPriceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.UpdateVerticalPrice(c.Request.Context(), &input); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Update horizontal prize
// @Description Update the horizontal collection prize for a gift (admin only)
// @Tags gifts
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param price body models.UpdateHorizontalPriceInput true "Prize"
// @Success 200 {object} map[string]bool
// @Router /gifts/prices/horizontal [put]
func (h *GiftHandler) updateHorizontalPrice(c *gin.Context) {
	var input models.UpdateHorizontalPriceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.UpdateHorizontalPrice(c.Request.Context(), &input); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Reload catalog
// @Description Reload the in-memory gift catalog and price tables (admin only)
// @Tags gifts
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]bool
// @Router /gifts/reload [post]
func (h *GiftHandler) reload(c *gin.Context) {
	if err := h.service.Reload(c.Request.Context()); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRarity), errors.Is(err, service.ErrInvalidLevel):
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
	case errors.Is(err, service.ErrGiftNotFound):
		c.Error(apperrors.NewNotFoundError("gift"))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "gift request failed"))
	}
}
