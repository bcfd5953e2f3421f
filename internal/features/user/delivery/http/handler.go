package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/user/models"
	"merge-verse-backend/internal/features/user/repository"
	"merge-verse-backend/internal/features/user/service"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	users := router.Group("/users")
	{
		users.GET("/me", h.getMe)
		users.GET("/me/collection", h.getMyCollection)
		users.PUT("/me/wallet", h.setWallet)
		users.POST("/me/email", h.createEmail)
		users.POST("/me/email/resend", h.resendEmailCode)
		users.POST("/me/email/verify", h.verifyEmail)
	}

	// Админские маршруты
	admin := router.Group("/users")
	admin.Use(middleware.RequireAdmin(cfg))
	{
		admin.GET("", h.listUsers)
		admin.GET("/:id", h.getUser)
		admin.PUT("/:id/ban", h.setBanned)
		admin.PUT("/:id/balance", h.adjustBalance)
	}
}

// @Summary Get current user
// @Description Get or create the current user from Telegram init data. The
// referral start param binds the referrer on first login.
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} map[string]string
// @Router /users/me [get]
func (h *UserHandler) getMe(c *gin.Context) {
	telegramUser, ok := middleware.GetTelegramUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	user, err := h.service.GetOrCreateUser(c.Request.Context(),
		telegramUser.ID, telegramUser.Username, telegramUser.FirstName, middleware.GetStartParam(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// @Summary My collection grid
// @Description Get the catalog-by-level grid with ownership marks
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.CollectionCell
// @Router /users/me/collection [get]
func (h *UserHandler) getMyCollection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	cells, err := h.service.GetCollectionGrid(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cells)
}

// @Summary Set crypto wallet
// @Description Save the user's TON wallet address
// @Tags users
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param wallet body models.SetWalletInput true "Wallet"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /users/me/wallet [put]
func (h *UserHandler) setWallet(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.SetWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.SetWallet(c.Request.Context(), userID, input.Address); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Set email
// @Description Save the user's email and send a verification code
// @Tags users
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param email body models.CreateEmailInput true "Email"
// @Success 200 {object} map[string]bool
// @Router /users/me/email [post]
func (h *UserHandler) createEmail(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.CreateEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.CreateEmail(c.Request.Context(), userID, input.Email); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Resend verification code
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]bool
// @Router /users/me/email/resend [post]
func (h *UserHandler) resendEmailCode(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	if err := h.service.ResendEmailCode(c.Request.Context(), userID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Verify email
// @Description Confirm the email with the 6-digit code
// @Tags users
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param code body models.VerifyEmailInput true "Code"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /users/me/email/verify [post]
func (h *UserHandler) verifyEmail(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.VerifyEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.VerifyEmail(c.Request.Context(), userID, input.Code); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary List users
// @Description List users (admin only)
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Router /users [get]
func (h *UserHandler) listUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.service.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// @Summary Get user by ID
// @Description Get user information by ID (admin only)
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Success 200 {object} models.UserResponse
// @Failure 404 {object} map[string]string
// @Router /users/{id} [get]
func (h *UserHandler) getUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// @Summary Ban or unban user
// @Tags users
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Param input body object{banned=bool} true "Ban flag"
// @Success 200 {object} map[string]bool
// @Router /users/{id}/ban [put]
func (h *UserHandler) setBanned(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	var input struct {
		Banned bool `json:"banned"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.SetBanned(c.Request.Context(), id, input.Banned); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Adjust user balance
// @Description Credit or debit a user's balance (admin only)
// @Tags users
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Param input body models.AdjustBalanceInput true "Amount"
// @Success 200 {object} map[string]bool
// @Router /users/{id}/balance [put]
func (h *UserHandler) adjustBalance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	var input models.AdjustBalanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	if err := h.service.AdjustBalance(c.Request.Context(), id, input.Amount); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.Error(apperrors.NewNotFoundError("user"))
	case errors.Is(err, service.ErrInvalidAddress), errors.Is(err, service.ErrInvalidCode):
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
	case errors.Is(err, repository.ErrInsufficientBalance):
		c.Error(apperrors.NewInsufficientError("balance"))
	case errors.Is(err, service.ErrEmailNotSet), errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrMailerDisabled):
		c.Error(apperrors.NewInvalidStateError(err.Error()))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "user request failed"))
	}
}
