package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/ecommerce/internal/pricing/application"
	"github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// PricingHandler 定价 HTTP 处理器
type PricingHandler struct {
	svc *application.PricingService
}

// NewPricingHandler 创建定价 HTTP 处理器
func NewPricingHandler(svc *application.PricingService) *PricingHandler {
	return &PricingHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *PricingHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/pricing")
	{
		api.POST("/calculate", h.CalculatePrice)
		api.POST("/validate", h.ValidateSpecifications)
		api.POST("/rules", h.CreatePriceRule)
		api.GET("/rules", h.ListPriceRules)
		api.POST("/templates", h.CreateTemplate)
		api.GET("/templates", h.ListTemplates)
	}
}

// CreateTemplateRequest 创建规格模板请求
type CreateTemplateRequest struct {
	SubcategoryID uint     `json:"subcategory_id" binding:"required"`
	Name          string   `json:"name" binding:"required"`
	Type          string   `json:"type" binding:"required"`
	Options       []string `json:"options"`
	Required      bool     `json:"required"`
	AffectsPrice  bool     `json:"affects_price"`
	DisplayOrder  int      `json:"display_order"`
}

// CreateTemplate 创建规格模板
func (h *PricingHandler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	tpl, err := h.svc.CreateTemplate(c.Request.Context(), application.CreateTemplateCommand{
		SubcategoryID: req.SubcategoryID,
		Name:          req.Name,
		Type:          domain.FieldType(req.Type),
		Options:       req.Options,
		Required:      req.Required,
		AffectsPrice:  req.AffectsPrice,
		DisplayOrder:  req.DisplayOrder,
	})
	if err != nil {
		h.fail(c, "failed to create template", err)
		return
	}
	response.Created(c, tpl)
}

// ListTemplates 查询子类目下启用的规格模板
func (h *PricingHandler) ListTemplates(c *gin.Context) {
	sub, err := strconv.ParseUint(c.Query("subcategory_id"), 10, 64)
	if err != nil || sub == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid subcategory_id", "")
		return
	}
	templates, err := h.svc.ListTemplates(c.Request.Context(), uint(sub))
	if err != nil {
		h.fail(c, "failed to list templates", err)
		return
	}
	response.Success(c, templates)
}

// CalculatePriceRequest 价格计算请求，金额单位为分
type CalculatePriceRequest struct {
	SubcategoryID  uint                  `json:"subcategory_id" binding:"required"`
	Specifications domain.Specifications `json:"specifications"`
	BasePrice      *int64                `json:"base_price"`
}

// ValidateSpecificationsRequest 规格校验请求
type ValidateSpecificationsRequest struct {
	SubcategoryID  uint                  `json:"subcategory_id" binding:"required"`
	Specifications domain.Specifications `json:"specifications"`
}

// CreatePriceRuleRequest 创建价格规则请求
type CreatePriceRuleRequest struct {
	SubcategoryID  uint                  `json:"subcategory_id" binding:"required"`
	TemplateID     *uint                 `json:"template_id"`
	BasePrice      int64                 `json:"base_price" binding:"required"`
	SpecConditions domain.SpecConditions `json:"spec_conditions"`
	PriceModifier  int64                 `json:"price_modifier"`
	ModifierType   string                `json:"modifier_type" binding:"required"`
}

// CalculatePrice 计算价格
func (h *PricingHandler) CalculatePrice(c *gin.Context) {
	var req CalculatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	cmd := application.CalculatePriceCommand{
		SubcategoryID:  req.SubcategoryID,
		Specifications: req.Specifications,
	}
	if req.BasePrice != nil {
		base := money.Amount(*req.BasePrice)
		cmd.BasePrice = &base
	}

	quote, err := h.svc.CalculatePrice(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "failed to calculate price", err)
		return
	}
	response.Success(c, quote)
}

// ValidateSpecifications 校验规格
func (h *PricingHandler) ValidateSpecifications(c *gin.Context) {
	var req ValidateSpecificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	res, err := h.svc.ValidateSpecifications(c.Request.Context(), req.SubcategoryID, req.Specifications)
	if err != nil {
		h.fail(c, "failed to validate specifications", err)
		return
	}
	response.Success(c, res)
}

// CreatePriceRule 创建价格规则
func (h *PricingHandler) CreatePriceRule(c *gin.Context) {
	var req CreatePriceRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	rule, err := h.svc.CreatePriceRule(c.Request.Context(), application.CreatePriceRuleCommand{
		SubcategoryID: req.SubcategoryID,
		TemplateID:    req.TemplateID,
		BasePrice:     money.Amount(req.BasePrice),
		Conditions:    req.SpecConditions,
		PriceModifier: req.PriceModifier,
		ModifierType:  domain.ModifierType(req.ModifierType),
	})
	if err != nil {
		h.fail(c, "failed to create price rule", err)
		return
	}
	response.Created(c, rule)
}

// ListPriceRules 查询价格规则
func (h *PricingHandler) ListPriceRules(c *gin.Context) {
	sub, err := strconv.ParseUint(c.Query("subcategory_id"), 10, 64)
	if err != nil || sub == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid subcategory_id", "")
		return
	}
	includeInactive := c.Query("include_inactive") == "true"

	rules, err := h.svc.ListPriceRules(c.Request.Context(), uint(sub), includeInactive)
	if err != nil {
		h.fail(c, "failed to list price rules", err)
		return
	}
	response.Success(c, rules)
}

func (h *PricingHandler) fail(c *gin.Context, msg string, err error) {
	if errors.Is(err, application.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidRule) {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	logger.Error(c.Request.Context(), msg, "error", err)
	response.ErrorWithStatus(c, http.StatusInternalServerError, msg, "")
}
