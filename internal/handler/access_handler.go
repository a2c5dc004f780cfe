package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/techgangboss/agentstore-sub000/internal/facilitator"
	"github.com/techgangboss/agentstore-sub000/internal/logic"
	"github.com/techgangboss/agentstore-sub000/internal/model"
	"gorm.io/gorm"
)

// AccessHandler 访问检查处理器
type AccessHandler struct {
	db               *gorm.DB
	entitlementLogic *logic.EntitlementLogic
	quoteLogic       *logic.QuoteLogic
}

// NewAccessHandler 创建访问检查处理器
func NewAccessHandler(db *gorm.DB, entitlementLogic *logic.EntitlementLogic, quoteLogic *logic.QuoteLogic) *AccessHandler {
	return &AccessHandler{
		db:               db,
		entitlementLogic: entitlementLogic,
		quoteLogic:       quoteLogic,
	}
}

// CheckAccess 查询买家对agent的访问状态，纯读操作。
// 已授权返回granted，未授权返回402及报价。
func (h *AccessHandler) CheckAccess(c *gin.Context) {
	agentId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的Agent ID")
		return
	}

	buyer := c.Query("buyer")
	if buyer == "" {
		ErrorResponse(c, http.StatusBadRequest, "缺少buyer参数")
		return
	}

	var agent model.AgentModel
	if err := h.db.First(&agent, agentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ErrorResponse(c, http.StatusNotFound, "agent不存在")
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	entitlement, err := h.entitlementLogic.Lookup(agentId, buyer)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	if entitlement != nil {
		SuccessResponse(c, http.StatusOK, "已授权", GrantedResponse{
			Granted:     true,
			Entitlement: ToEntitlementResponse(entitlement),
		})
		return
	}

	// 免费agent无需支付
	if agent.PricingModel == model.PricingModelFree {
		SuccessResponse(c, http.StatusOK, "免费资源", gin.H{"granted": true})
		return
	}

	quote := h.quoteLogic.BuildQuote(&agent)
	c.JSON(http.StatusPaymentRequired, Response{
		Success: false,
		Message: "需要支付",
		Data: PaymentRequiredResponse{
			Granted: false,
			Quote:   quote,
			Accepts: []*facilitator.PaymentRequirements{h.quoteLogic.Requirements(&agent, quote)},
		},
	})
}

// ListEntitlements 查询买家的全部有效授权
func (h *AccessHandler) ListEntitlements(c *gin.Context) {
	buyer := c.Query("buyer")
	if buyer == "" {
		ErrorResponse(c, http.StatusBadRequest, "缺少buyer参数")
		return
	}

	entitlements, err := h.entitlementLogic.ListByBuyer(buyer)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	responses := make([]EntitlementResponse, len(entitlements))
	for i := range entitlements {
		responses[i] = ToEntitlementResponse(&entitlements[i])
	}

	SuccessResponse(c, http.StatusOK, "获取授权列表成功", EntitlementListResponse{Entitlements: responses})
}
