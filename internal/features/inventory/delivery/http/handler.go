package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/inventory/service"
)

type ItemHandler struct {
	service service.ItemService
}

func NewItemHandler(service service.ItemService) *ItemHandler {
	return &ItemHandler{
		service: service,
	}
}

func (h *ItemHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	items := router.Group("/items")
	{
		items.GET("", h.getMyItems)
		items.GET("/history", h.getMyHistory)
	}

	// Админские маршруты
	admin := router.Group("/items")
	admin.Use(middleware.RequireAdmin(cfg))
	{
		admin.POST("/archive/:id", h.archiveUser)
		admin.POST("/archive", h.archiveAll)
	}
}

// @Summary My inventory
// @Description Get the current user's item stacks
// @Tags items
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Item
// @Router /items [get]
func (h *ItemHandler) getMyItems(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	items, err := h.service.GetUserItems(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "inventory request failed"))
		return
	}

	c.JSON(http.StatusOK, items)
}

// @Summary My ownership history
// @Description Get every gift-level combination the current user has ever owned
// @Tags items
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.HistoryEntry
// @Router /items/history [get]
func (h *ItemHandler) getMyHistory(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	entries, err := h.service.GetUserHistory(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "inventory request failed"))
		return
	}

	c.JSON(http.StatusOK, entries)
}

// @Summary Archive user inventory
// @Description Move a user's inventory into history and clear it (admin only)
// @Tags items
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Success 200 {object} map[string]bool
// @Router /items/archive/{id} [post]
func (h *ItemHandler) archiveUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	if err := h.service.ArchiveUser(c.Request.Context(), id); err != nil {
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "inventory request failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Archive all inventories
// @Description Move every inventory into history and clear it (admin only)
// @Tags items
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]bool
// @Router /items/archive [post]
func (h *ItemHandler) archiveAll(c *gin.Context) {
	if err := h.service.ArchiveAll(c.Request.Context()); err != nil {
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "inventory request failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
