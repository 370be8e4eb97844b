package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/ecommerce/internal/catalog/application"
	pricing "github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// CatalogHandler 商品目录 HTTP 处理器
type CatalogHandler struct {
	svc *application.CatalogService
}

// NewCatalogHandler 创建商品目录 HTTP 处理器
func NewCatalogHandler(svc *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/catalog/products")
	{
		api.POST("", h.CreateProduct)
		api.GET("", h.ListProducts)
		api.GET("/:id", h.GetProduct)
		api.POST("/:id/reprice", h.RepriceProduct)
	}
}

// CreateProductRequest 创建商品请求，base_price 单位为分，price 为历史元价格
type CreateProductRequest struct {
	SubcategoryID  uint                   `json:"subcategory_id"`
	Name           string                 `json:"name" binding:"required"`
	Description    string                 `json:"description"`
	Specifications pricing.Specifications `json:"specifications"`
	BasePrice      *int64                 `json:"base_price"`
	Price          *decimal.Decimal       `json:"price"`
	StockQuantity  int                    `json:"stock_quantity"`
}

// CreateProduct 创建商品
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	cmd := application.CreateProductCommand{
		SubcategoryID: req.SubcategoryID,
		Name:          req.Name,
		Description:   req.Description,
		Specs:         req.Specifications,
		LegacyPrice:   req.Price,
		StockQuantity: req.StockQuantity,
	}
	if req.BasePrice != nil {
		base := money.Amount(*req.BasePrice)
		cmd.BasePrice = &base
	}

	p, err := h.svc.CreateProduct(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "failed to create product", err)
		return
	}
	response.Created(c, p)
}

// GetProduct 获取商品
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to get product", err)
		return
	}
	response.Success(c, p)
}

// ListProducts 分页查询商品
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	sub, _ := strconv.ParseUint(c.Query("subcategory_id"), 10, 64)
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))

	list, err := h.svc.ListProducts(c.Request.Context(), uint(sub), page, size)
	if err != nil {
		h.fail(c, "failed to list products", err)
		return
	}
	response.Success(c, list)
}

// RepriceProduct 按规则重新计算商品价格
func (h *CatalogHandler) RepriceProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.svc.RepriceProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to reprice product", err)
		return
	}
	response.Success(c, res)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid product id", "")
		return 0, false
	}
	return uint(id), true
}

func (h *CatalogHandler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, application.ErrProductNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, application.ErrInvalidProduct):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, application.ErrNonPositivePrice):
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), msg, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, msg, "")
	}
}
