package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/giveaway/models"
	"merge-verse-backend/internal/features/giveaway/service"
)

type GiveawayHandler struct {
	service service.GiveawayService
}

func NewGiveawayHandler(service service.GiveawayService) *GiveawayHandler {
	return &GiveawayHandler{
		service: service,
	}
}

func (h *GiveawayHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	giveaways := router.Group("/giveaways")
	{
		giveaways.GET("", h.list)
		giveaways.GET("/active", h.listActive)
		giveaways.GET("/top", h.topWinners)
		giveaways.GET("/my", h.myEntries)
		giveaways.GET("/:id", h.getGiveaway)
		giveaways.GET("/:id/winners", h.listWinners)
		giveaways.POST("/:id/enter", h.enter)
		giveaways.POST("/winners/:id/choice", h.chooseReward)
	}

	admin := router.Group("/admin/giveaways")
	admin.Use(middleware.RequireAdmin(cfg))
	{
		admin.POST("", h.create)
		admin.POST("/:id/finish", h.finish)
		admin.GET("/pending", h.pendingWinners)
		admin.GET("/steps", h.getSteps)
		admin.PUT("/steps", h.updateSteps)
	}
}

// @Summary Giveaways with entry counts
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Giveaway
// @Router /giveaways [get]
func (h *GiveawayHandler) list(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	giveaways, err := h.service.GetGiveaways(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, giveaways)
}

// @Summary Active giveaways
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Giveaway
// @Router /giveaways/active [get]
func (h *GiveawayHandler) listActive(c *gin.Context) {
	giveaways, err := h.service.GetActiveGiveaways(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, giveaways)
}

// @Summary Hall of fame
// @Description Top winners grouped by user with per-rarity win counts
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.TopWinner
// @Router /giveaways/top [get]
func (h *GiveawayHandler) topWinners(c *gin.Context) {
	winners, err := h.service.GetTopWinners(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, winners)
}

// @Summary My giveaway entries
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Entry
// @Router /giveaways/my [get]
func (h *GiveawayHandler) myEntries(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	entries, err := h.service.GetUserEntries(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// @Summary Giveaway by ID
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Giveaway ID"
// @Success 200 {object} models.Giveaway
// @Failure 404 {object} map[string]string
// @Router /giveaways/{id} [get]
func (h *GiveawayHandler) getGiveaway(c *gin.Context) {
	giveaway, err := h.service.GetGiveaway(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, giveaway)
}

// @Summary Giveaway winners
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Giveaway ID"
// @Success 200 {array} models.Winner
// @Router /giveaways/{id}/winners [get]
func (h *GiveawayHandler) listWinners(c *gin.Context) {
	winners, err := h.service.GetWinners(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, winners)
}

// @Summary Enter giveaway
// @Description Spend one max-level item of the drawn gift; the entry is irreversible
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Giveaway ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /giveaways/{id}/enter [post]
func (h *GiveawayHandler) enter(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	if err := h.service.Enter(c.Request.Context(), userID, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "entered"})
}

// @Summary Choose giveaway reward
// @Description Winner confirms the gift itself or compensation at the max-level price
// @Tags giveaways
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Winner ID"
// @Param choice body models.ChooseRewardInput true "Choice"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /giveaways/winners/{id}/choice [post]
func (h *GiveawayHandler) chooseReward(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.ChooseRewardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.ChooseReward(c.Request.Context(), userID, c.Param("id"), input.Choice); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "chosen"})
}

// @Summary Create giveaway
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param giveaway body models.CreateGiveawayInput true "Giveaway"
// @Success 201 {object} models.Giveaway
// @Router /admin/giveaways [post]
func (h *GiveawayHandler) create(c *gin.Context) {
	var input models.CreateGiveawayInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	giveaway, err := h.service.CreateGiveaway(c.Request.Context(), &input)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, giveaway)
}

// @Summary Finish giveaway
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Giveaway ID"
// @Success 200 {object} models.Giveaway
// @Failure 400 {object} map[string]string
// @Router /admin/giveaways/{id}/finish [post]
func (h *GiveawayHandler) finish(c *gin.Context) {
	giveaway, err := h.service.Finish(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, giveaway)
}

// @Summary Pending winner choices
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Winner
// @Router /admin/giveaways/pending [get]
func (h *GiveawayHandler) pendingWinners(c *gin.Context) {
	winners, err := h.service.GetPendingWinners(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, winners)
}

// @Summary Quorum threshold
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]int
// @Router /admin/giveaways/steps [get]
func (h *GiveawayHandler) getSteps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"steps": h.service.Steps()})
}

// @Summary Update quorum threshold
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param steps body models.UpdateStepsInput true "Steps"
// @Success 200 {object} map[string]int
// @Failure 400 {object} map[string]string
// @Router /admin/giveaways/steps [put]
func (h *GiveawayHandler) updateSteps(c *gin.Context) {
	var input models.UpdateStepsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.UpdateSteps(c.Request.Context(), input.Steps); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"steps": h.service.Steps()})
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGiveawayNotFound):
		c.Error(apperrors.NewNotFoundError("giveaway"))
	case errors.Is(err, service.ErrWinnerNotFound), errors.Is(err, service.ErrNotWinner):
		c.Error(apperrors.NewNotFoundError("winner"))
	case errors.Is(err, service.ErrNoEligibleItem):
		c.Error(apperrors.NewInsufficientError("eligible items"))
	case errors.Is(err, service.ErrInvalidSteps), errors.Is(err, service.ErrInvalidChoice):
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
	case errors.Is(err, service.ErrGiveawayNotActive), errors.Is(err, service.ErrAlreadyEntered),
		errors.Is(err, service.ErrAlreadyChosen):
		c.Error(apperrors.NewInvalidStateError(err.Error()))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "giveaway request failed"))
	}
}
