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

// SettleHandler 结算处理器
type SettleHandler struct {
	db          *gorm.DB
	settleLogic *logic.SettleLogic
	quoteLogic  *logic.QuoteLogic
}

// NewSettleHandler 创建结算处理器
func NewSettleHandler(db *gorm.DB, settleLogic *logic.SettleLogic, quoteLogic *logic.QuoteLogic) *SettleHandler {
	return &SettleHandler{
		db:          db,
		settleLogic: settleLogic,
		quoteLogic:  quoteLogic,
	}
}

// Settle 提交签名授权完成购买
func (h *SettleHandler) Settle(c *gin.Context) {
	agentId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的Agent ID")
		return
	}

	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	result, err := h.settleLogic.Settle(c.Request.Context(), agentId, req.BuyerAddress, req.Quote, req.Payment)
	if err != nil {
		h.settleError(c, agentId, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "结算成功", GrantedResponse{
		Granted:     true,
		Entitlement: ToEntitlementResponse(result.Entitlement),
	})
}

// settleError 将结算错误映射为HTTP状态码。
// 报价类失败随响应下发新报价，买家可直接重试。
func (h *SettleHandler) settleError(c *gin.Context, agentId int64, err error) {
	switch {
	case errors.Is(err, logic.ErrAgentNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, logic.ErrAgentDisabled):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, logic.ErrAlreadyEntitled), errors.Is(err, logic.ErrTxHashUsed):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, logic.ErrQuoteExpired),
		errors.Is(err, logic.ErrPriceMismatch),
		errors.Is(err, logic.ErrAmountMismatch),
		errors.Is(err, logic.ErrAuthorizationRejected),
		errors.Is(err, logic.ErrSettlementFailed):
		h.paymentRequired(c, agentId, err.Error())
	default:
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

// paymentRequired 返回402及新报价
func (h *SettleHandler) paymentRequired(c *gin.Context, agentId int64, reason string) {
	var agent model.AgentModel
	if err := h.db.First(&agent, agentId).Error; err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	quote := h.quoteLogic.BuildQuote(&agent)
	c.JSON(http.StatusPaymentRequired, Response{
		Success: false,
		Message: reason,
		Data: PaymentRequiredResponse{
			Granted: false,
			Reason:  reason,
			Quote:   quote,
			Accepts: []*facilitator.PaymentRequirements{h.quoteLogic.Requirements(&agent, quote)},
		},
	})
}
