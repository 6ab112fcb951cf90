package handle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"orderhub/internal/cart/app/core"
	"orderhub/internal/cart/app/services"
	"orderhub/internal/cart/domain"
	"orderhub/internal/xpkg/auth"
	"orderhub/internal/xpkg/logger"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 10 * time.Second

type CartRequest struct {
	Items domain.Cart `json:"items"`
}

type CartHandler struct {
	cartService *services.CartService
	mylog       logger.Logger
}

func NewCartHandler(cartService *services.CartService, mylog logger.Logger) *CartHandler {
	return &CartHandler{cartService: cartService, mylog: mylog}
}

func (ch *CartHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	cart, err := ch.cartService.Get(ctx, auth.ActorFrom(c).ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, CartRequest{Items: cart})
}

func (ch *CartHandler) Put(c *gin.Context) {
	var req CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to parse JSON"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ch.cartService.Put(ctx, auth.ActorFrom(c).ID, req.Items); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, CartRequest{Items: req.Items})
}

// Merge reconciles the device's local cart at login. The response carries
// the merged cart and the lines that were pushed to the stored cart.
func (ch *CartHandler) Merge(c *gin.Context) {
	var req CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to parse JSON"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	res, err := ch.cartService.Reconcile(ctx, auth.ActorFrom(c).ID, req.Items)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func respondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCart), errors.Is(err, domain.ErrDuplicateLine):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrCartStore):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "cart store unavailable"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
