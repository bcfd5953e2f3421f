package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/collection/models"
	"merge-verse-backend/internal/features/collection/service"
)

type CollectionHandler struct {
	service service.CollectionService
}

func NewCollectionHandler(service service.CollectionService) *CollectionHandler {
	return &CollectionHandler{
		service: service,
	}
}

func (h *CollectionHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	collection := router.Group("/collection")
	{
		collection.GET("", h.checkCollection)
		collection.POST("/craft", h.craft)
		collection.POST("/claim/vertical", h.claimVertical)
		collection.POST("/claim/horizontal", h.claimHorizontal)
		collection.POST("/claim/full", h.claimFull)

		collection.GET("/table", h.getCraftTable)
		collection.POST("/table", h.placeCraftItem)
		collection.DELETE("/table", h.removeCraftItem)
	}

	admin := router.Group("/admin/collection")
	admin.Use(middleware.RequireAdmin(cfg))
	{
		admin.PUT("/visibility", h.setVisibility)
	}
}

// @Summary Collection progress
// @Description Progress of vertical and horizontal collections with prizes
// @Tags collection
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.CompletionReport
// @Router /collection [get]
func (h *CollectionHandler) checkCollection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	report, err := h.service.CheckCollection(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// @Summary Craft items
// @Description Merge two items of the same gift and level into the next level
// @Tags collection
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param craft body models.CraftInput true "Item IDs"
// @Success 200 {object} models.CraftResult
// @Failure 400 {object} map[string]string
// @Router /collection/craft [post]
func (h *CollectionHandler) craft(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.CraftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	result, err := h.service.Craft(c.Request.Context(), userID, input.Item1ID, input.Item2ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Claim vertical collection prize
// @Description Spend one item of every gift at the level and credit the prize
// @Tags collection
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param claim body models.ClaimVerticalInput true "Level"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /collection/claim/vertical [post]
func (h *CollectionHandler) claimVertical(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.ClaimVerticalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	prize, err := h.service.ClaimVertical(c.Request.Context(), userID, input.Level)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prize": prize.String()})
}

// @Summary Claim horizontal collection prize
// @Description Spend one item of the gift at every level and credit the prize
// @Tags collection
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param claim body models.ClaimHorizontalInput true "Gift ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /collection/claim/horizontal [post]
func (h *CollectionHandler) claimHorizontal(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.ClaimHorizontalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	prize, err := h.service.ClaimHorizontal(c.Request.Context(), userID, input.GiftID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prize": prize.String()})
}

// @Summary Claim full collection prize
// @Description Spend one item of every cell of the collection and credit the prize
// @Tags collection
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /collection/claim/full [post]
func (h *CollectionHandler) claimFull(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	prize, err := h.service.ClaimFull(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prize": prize.String()})
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCollectionHidden):
		c.Error(apperrors.New(apperrors.ErrCodeForbidden, err.Error()))
	case errors.Is(err, service.ErrItemNotFound), errors.Is(err, service.ErrNotOwner):
		c.Error(apperrors.NewNotFoundError("item"))
	case errors.Is(err, service.ErrNotEnoughCopies):
		c.Error(apperrors.NewInsufficientError("copies"))
	case errors.Is(err, service.ErrIncomplete), errors.Is(err, service.ErrDifferentItems),
		errors.Is(err, service.ErrMaxLevel), errors.Is(err, service.ErrOutOfGrid),
		errors.Is(err, service.ErrCellOccupied), errors.Is(err, service.ErrCellEmpty):
		c.Error(apperrors.NewInvalidStateError(err.Error()))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "collection request failed"))
	}
}

// @Summary Craft table
// @Tags collection
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.CraftItem
// @Router /collection/table [get]
func (h *CollectionHandler) getCraftTable(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	items, err := h.service.GetCraftTable(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// @Summary Place item on the craft table
// @Tags collection
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param place body models.PlaceCraftItemInput true "Item and position"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /collection/table [post]
func (h *CollectionHandler) placeCraftItem(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.PlaceCraftItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.PlaceCraftItem(c.Request.Context(), userID, &input); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "placed"})
}

// @Summary Remove item from the craft table
// @Tags collection
// @Produce json
// @Security TelegramInitData
// @Param x query int true "Column"
// @Param y query int true "Row"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /collection/table [delete]
func (h *CollectionHandler) removeCraftItem(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	x, err := strconv.Atoi(c.Query("x"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid x"})
		return
	}
	y, err := strconv.Atoi(c.Query("y"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid y"})
		return
	}

	if err := h.service.RemoveCraftItem(c.Request.Context(), userID, x, y); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// @Summary Toggle collection prize availability
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param visibility body models.SetVisibilityInput true "Visibility"
// @Success 200 {object} map[string]string
// @Router /admin/collection/visibility [put]
func (h *CollectionHandler) setVisibility(c *gin.Context) {
	var input models.SetVisibilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.SetVisibility(c.Request.Context(), *input.Visible); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
