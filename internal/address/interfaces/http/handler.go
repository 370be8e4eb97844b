package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/ecommerce/internal/address/application"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// AddressHandler 地址 HTTP 处理器
type AddressHandler struct {
	svc *application.AddressService
}

// NewAddressHandler 创建地址 HTTP 处理器
func NewAddressHandler(svc *application.AddressService) *AddressHandler {
	return &AddressHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *AddressHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/users/:user_id/addresses")
	{
		api.POST("", h.CreateAddress)
		api.GET("", h.ListAddresses)
		api.DELETE("/:id", h.DeactivateAddress)
	}
}

// CreateAddressRequest 创建地址请求
type CreateAddressRequest struct {
	Recipient  string `json:"recipient" binding:"required"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (h *AddressHandler) CreateAddress(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	var req CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	a, err := h.svc.CreateAddress(c.Request.Context(), application.CreateAddressCommand{
		UserID:     userID,
		Recipient:  req.Recipient,
		Phone:      req.Phone,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	})
	if err != nil {
		h.fail(c, "failed to create address", err)
		return
	}
	response.Created(c, a)
}

func (h *AddressHandler) ListAddresses(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	list, err := h.svc.ListAddresses(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "failed to list addresses", err)
		return
	}
	response.Success(c, list)
}

func (h *AddressHandler) DeactivateAddress(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateAddress(c.Request.Context(), id, userID); err != nil {
		h.fail(c, "failed to deactivate address", err)
		return
	}
	response.Success(c, gin.H{"id": id, "active": false})
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid "+name, "")
		return 0, false
	}
	return uint(v), true
}

func (h *AddressHandler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, application.ErrAddressNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, application.ErrInvalidAddress):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), msg, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, msg, "")
	}
}
