package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"merge-verse-backend/internal/common/config"
	apperrors "merge-verse-backend/internal/common/errors"
	"merge-verse-backend/internal/common/middleware"
	"merge-verse-backend/internal/features/auction/models"
	"merge-verse-backend/internal/features/auction/service"
)

type AuctionHandler struct {
	service service.AuctionService
}

func NewAuctionHandler(service service.AuctionService) *AuctionHandler {
	return &AuctionHandler{
		service: service,
	}
}

func (h *AuctionHandler) RegisterRoutes(router *gin.RouterGroup, cfg *config.Config) {
	auctions := router.Group("/auctions")
	{
		auctions.GET("", h.listActive)
		auctions.GET("/my", h.listMy)
		auctions.GET("/:id", h.getAuction)
		auctions.GET("/:id/bids", h.listBids)
		auctions.POST("", h.create)
		auctions.POST("/:id/bids", h.placeBid)
		auctions.POST("/:id/finish", h.finish)
	}
}

// @Summary Active auctions
// @Tags auctions
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Auction
// @Router /auctions [get]
func (h *AuctionHandler) listActive(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	auctions, err := h.service.GetActiveAuctions(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, auctions)
}

// @Summary My auctions
// @Tags auctions
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Auction
// @Router /auctions/my [get]
func (h *AuctionHandler) listMy(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	auctions, err := h.service.GetMyAuctions(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, auctions)
}

// @Summary Auction by ID
// @Tags auctions
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Auction ID"
// @Success 200 {object} models.Auction
// @Failure 404 {object} map[string]string
// @Router /auctions/{id} [get]
func (h *AuctionHandler) getAuction(c *gin.Context) {
	auction, err := h.service.GetAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

// @Summary Auction bids
// @Tags auctions
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Auction ID"
// @Success 200 {array} models.Bid
// @Router /auctions/{id}/bids [get]
func (h *AuctionHandler) listBids(c *gin.Context) {
	bids, err := h.service.GetBids(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, bids)
}

// @Summary Create auction
// @Description List one tradeable item for sale at the catalog price with markup
// @Tags auctions
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param auction body models.CreateAuctionInput true "Item"
// @Success 201 {object} models.Auction
// @Failure 400 {object} map[string]string
// @Router /auctions [post]
func (h *AuctionHandler) create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.CreateAuctionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	auction, err := h.service.Create(c.Request.Context(), userID, input.ItemID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, auction)
}

// @Summary Place bid
// @Description Bid on an active auction; the amount with commission is held from the balance
// @Tags auctions
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Auction ID"
// @Param bid body models.PlaceBidInput true "Amount"
// @Success 200 {object} models.Auction
// @Failure 400 {object} map[string]string
// @Router /auctions/{id}/bids [post]
func (h *AuctionHandler) placeBid(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	var input models.PlaceBidInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(apperrors.New(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	auction, err := h.service.PlaceBid(c.Request.Context(), userID, c.Param("id"), input.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

// @Summary Finish auction
// @Description Settle the auction early; only the seller can do this
// @Tags auctions
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Auction ID"
// @Success 200 {object} models.Auction
// @Failure 400 {object} map[string]string
// @Router /auctions/{id}/finish [post]
func (h *AuctionHandler) finish(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
		return
	}

	auction, err := h.service.Finish(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

// handleServiceError транслирует доменные ошибки в AppError для middleware
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAuctionNotFound):
		c.Error(apperrors.NewNotFoundError("auction"))
	case errors.Is(err, service.ErrItemNotFound), errors.Is(err, service.ErrNotOwner):
		c.Error(apperrors.NewNotFoundError("item"))
	case errors.Is(err, service.ErrInsufficientBalance):
		c.Error(apperrors.NewInsufficientError("balance"))
	case errors.Is(err, service.ErrNotTradeable), errors.Is(err, service.ErrPriceNotSet),
		errors.Is(err, service.ErrAuctionNotActive), errors.Is(err, service.ErrAuctionExpired),
		errors.Is(err, service.ErrSelfBid), errors.Is(err, service.ErrBidTooLow),
		errors.Is(err, service.ErrNotSeller):
		c.Error(apperrors.NewInvalidStateError(err.Error()))
	default:
		c.Error(apperrors.Wrap(err, apperrors.ErrCodeInternal, "auction request failed"))
	}
}
