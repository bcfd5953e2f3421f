package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/payment/models"
	"merge-verse-backend/internal/features/payment/service"
)

type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(service service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	payments := router.Group("/payments")
	{
		payments.GET("", h.listMy)
		payments.POST("/invoice", h.createInvoice)
		payments.POST("/ton", h.initiateTonDeposit)
		payments.POST("/payout/code", h.sendPayoutCode)
		payments.POST("/payout", h.requestPayout)
	}
}

// RegisterWebhooks вешает маршруты провайдеров вне авторизации Telegram
func (h *PaymentHandler) RegisterWebhooks(router *gin.RouterGroup) {
	router.POST("/webhooks/nowpayments", h.handleIPN)
}

// @Summary My payments
// @Tags payments
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Payment
// @Router /payments [get]
func (h *PaymentHandler) listMy(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	payments, err := h.service.GetUserPayments(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payments)
}

// @Summary Create deposit invoice
// @Description Create a NOWPayments invoice crediting the balance on confirmation
// @Tags payments
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param deposit body models.CreateDepositInput true "Amount in USD"
// @Success 200 {object} models.InvoiceResponse
// @Failure 400 {object} map[string]string
// @Router /payments/invoice [post]
func (h *PaymentHandler) createInvoice(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.CreateDepositInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), userID, input.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// @Summary Initiate TON deposit
// @Description Returns the project wallet, TON amount at the current rate and the required transfer comment
// @Tags payments
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param deposit body models.CreateDepositInput true "Amount in USD"
// @Success 200 {object} models.TonDepositInfo
// @Failure 400 {object} map[string]string
// @Router /payments/ton [post]
func (h *PaymentHandler) initiateTonDeposit(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.CreateDepositInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	info, err := h.service.InitiateTonDeposit(c.Request.Context(), userID, input.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// @Summary Send payout confirmation code
// @Tags payments
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /payments/payout/code [post]
func (h *PaymentHandler) sendPayoutCode(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	if err := h.service.SendPayoutCode(c.Request.Context(), userID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// @Summary Request payout
// @Description Withdraw to the saved wallet; requires the emailed confirmation code
// @Tags payments
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param payout body models.RequestPayoutInput true "Amount and code"
// @Success 200 {object} models.Payment
// @Failure 400 {object} map[string]string
// @Router /payments/payout [post]
func (h *PaymentHandler) requestPayout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.RequestPayoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	payment, err := h.service.RequestPayout(c.Request.Context(), userID, input.Amount, input.Code)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// @Summary NOWPayments IPN webhook
// @Tags payments
// @Accept json
// @Produce json
// @Param x-nowpayments-sig header string true "HMAC signature"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /webhooks/nowpayments [post]
func (h *PaymentHandler) handleIPN(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	err = h.service.HandleIPN(c.Request.Context(), body, c.GetHeader("x-nowpayments-sig"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			c.Error(apperrors.New(apperrors.ErrCodeForbidden, err.Error()))
			return
		}
		logger.Error().Err(err).Msg("failed to handle IPN")
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "payment webhook failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
	case errors.Is(err, service.ErrInsufficientBalance):
		c.Error(apperrors.NewInsufficientError("balance"))
	case errors.Is(err, service.ErrEmailNotVerified), errors.Is(err, service.ErrWalletNotSet),
		errors.Is(err, service.ErrInvalidCode), errors.Is(err, service.ErrMailerDisabled),
		errors.Is(err, service.ErrPriceUnavailable):
		c.Error(apperrors.NewInvalidStateError(err.Error()))
	case errors.Is(err, service.ErrUpstream):
		c.Error(apperrors.NewUpstreamError("payment provider", err))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "payment request failed"))
	}
}
