package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/ecommerce/internal/cart/application"
	"github.com/wyfcoding/ecommerce/internal/cart/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// CartHandler 购物车 HTTP 处理器
type CartHandler struct {
	svc *application.CartService
}

// NewCartHandler 创建购物车 HTTP 处理器
func NewCartHandler(svc *application.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/carts/:user_id")
	{
		api.GET("", h.GetCart)
		api.POST("/items", h.AddItem)
		api.DELETE("/items/:product_id", h.RemoveItem)
		api.DELETE("", h.ClearCart)
	}
}

// AddItemRequest 加入购物车请求
type AddItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	cart, err := h.svc.GetCart(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "failed to get cart", err)
		return
	}
	response.Success(c, cart)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	cart, err := h.svc.AddItem(c.Request.Context(), application.AddItemCommand{
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.fail(c, "failed to add cart item", err)
		return
	}
	response.Success(c, cart)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	productID, ok := uintParam(c, "product_id")
	if !ok {
		return
	}
	cart, err := h.svc.RemoveItem(c.Request.Context(), userID, productID)
	if err != nil {
		h.fail(c, "failed to remove cart item", err)
		return
	}
	response.Success(c, cart)
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.svc.ClearCart(c.Request.Context(), userID); err != nil {
		h.fail(c, "failed to clear cart", err)
		return
	}
	response.Success(c, gin.H{"user_id": userID})
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid "+name, "")
		return 0, false
	}
	return uint(v), true
}

func (h *CartHandler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, application.ErrProductNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrInvalidQuantity):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), msg, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, msg, "")
	}
}
