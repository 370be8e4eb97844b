package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/ecommerce/internal/order/application"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
	payment "github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// OrderHandler 订单 HTTP 处理器
type OrderHandler struct {
	cmd   *application.OrderCommandService
	query *application.OrderQueryService
}

// NewOrderHandler 创建订单 HTTP 处理器
func NewOrderHandler(cmd *application.OrderCommandService, query *application.OrderQueryService) *OrderHandler {
	return &OrderHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/orders")
	{
		api.POST("", h.PlaceOrder)
		api.GET("", h.ListOrders)
		api.GET("/:id", h.GetOrder)
		api.POST("/:id/cancel", h.CancelOrder)
		api.POST("/:id/return", h.RequestReturn)
		api.POST("/:id/status", h.UpdateStatus)
	}
}

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	UserID         uint   `json:"user_id" binding:"required"`
	AddressID      uint   `json:"address_id" binding:"required"`
	PaymentMethod  string `json:"payment_method" binding:"required"`
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

// CancelOrderRequest 取消订单请求
type CancelOrderRequest struct {
	UserID uint   `json:"user_id"`
	Reason string `json:"reason"`
}

// ReturnRequest 退货申请请求
type ReturnRequest struct {
	UserID uint `json:"user_id"`
}

// UpdateStatusRequest 状态推进请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PlaceOrder 下单
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	order, err := h.cmd.PlaceOrder(c.Request.Context(), application.PlaceOrderCommand{
		UserID:        req.UserID,
		AddressID:     req.AddressID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Payment: payment.Reference{
			GatewayOrderID: req.GatewayOrderID,
			PaymentID:      req.PaymentID,
			Signature:      req.Signature,
		},
	})
	if err != nil {
		h.fail(c, "failed to place order", err)
		return
	}
	response.Created(c, order)
}

// GetOrder 查询订单详情，带 user_id 时校验归属
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)
	order, err := h.query.GetOrder(c.Request.Context(), id, uint(userID))
	if err != nil {
		h.fail(c, "failed to get order", err)
		return
	}
	response.Success(c, order)
}

// ListOrders 分页查询用户订单
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if err != nil || userID == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid user_id", "")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	list, err := h.query.ListOrders(c.Request.Context(), uint(userID), domain.OrderStatus(c.Query("status")), page, pageSize)
	if err != nil {
		h.fail(c, "failed to list orders", err)
		return
	}
	response.Success(c, list)
}

// CancelOrder 取消订单
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := bindOptional(c, &req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	order, err := h.cmd.CancelOrder(c.Request.Context(), application.CancelOrderCommand{
		OrderID: id,
		UserID:  req.UserID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.fail(c, "failed to cancel order", err)
		return
	}
	response.Success(c, order)
}

// RequestReturn 申请退货
func (h *OrderHandler) RequestReturn(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req ReturnRequest
	if err := bindOptional(c, &req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	order, err := h.cmd.RequestReturn(c.Request.Context(), application.RequestReturnCommand{OrderID: id, UserID: req.UserID})
	if err != nil {
		h.fail(c, "failed to request return", err)
		return
	}
	response.Success(c, order)
}

// UpdateStatus 推进订单状态
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	order, err := h.cmd.UpdateOrderStatus(c.Request.Context(), application.UpdateOrderStatusCommand{
		OrderID: id,
		Status:  domain.OrderStatus(req.Status),
	})
	if err != nil {
		h.fail(c, "failed to update order status", err)
		return
	}
	response.Success(c, order)
}

// bindOptional 请求体字段均可选，空请求体不视为错误
func bindOptional(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func idParam(c *gin.Context) (uint, bool) {
	v, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || v == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return 0, false
	}
	return uint(v), true
}

// statusFor 领域错误码到 HTTP 状态码
func statusFor(code string) int {
	switch code {
	case domain.ErrInvalidCommand.Code, domain.ErrPaymentFieldsMissing.Code:
		return http.StatusBadRequest
	case domain.ErrAddressNotFound.Code, domain.ErrProductNotFound.Code, domain.ErrOrderNotFound.Code:
		return http.StatusNotFound
	case domain.ErrInsufficientStock.Code, domain.ErrIllegalTransition.Code:
		return http.StatusConflict
	case domain.ErrEmptyCart.Code, domain.ErrUnpricedProduct.Code,
		domain.ErrReturnWindowExpired.Code, domain.ErrPaymentVerificationFailed.Code:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrderHandler) fail(c *gin.Context, msg string, err error) {
	if errors.Is(err, payment.ErrGatewayUnavailable) {
		logger.Warn(c.Request.Context(), msg, "error", err)
		response.ErrorWithReason(c, http.StatusBadGateway, "payment_gateway_unavailable", err.Error(), "")
		return
	}
	var de *domain.Error
	if errors.As(err, &de) {
		status := statusFor(de.Code)
		if status == http.StatusInternalServerError {
			logger.Error(c.Request.Context(), msg, "error", err)
		}
		response.ErrorWithReason(c, status, de.Code, err.Error(), "")
		return
	}
	logger.Error(c.Request.Context(), msg, "error", err)
	response.ErrorWithStatus(c, http.StatusInternalServerError, msg, "")
}
