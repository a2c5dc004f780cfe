package handler

import (
	"time"

	"github.com/techgangboss/agentstore-sub000/internal/facilitator"
	"github.com/techgangboss/agentstore-sub000/internal/logic"
	"github.com/techgangboss/agentstore-sub000/internal/model"
)

// SettleRequest 结算请求
type SettleRequest struct {
	BuyerAddress string                      `json:"buyer_address" binding:"required"`
	Quote        *logic.Quote                `json:"quote"`
	Payment      *facilitator.PaymentPayload `json:"payment"`
}

// EntitlementResponse 授权记录响应
type EntitlementResponse struct {
	AgentId            int64      `json:"agent_id"`
	Token              string     `json:"token"`
	ConfirmationStatus string     `json:"confirmation_status"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

// ToEntitlementResponse 转换授权记录
func ToEntitlementResponse(e *model.EntitlementModel) EntitlementResponse {
	return EntitlementResponse{
		AgentId:            e.AgentId,
		Token:              e.Token,
		ConfirmationStatus: string(e.ConfirmationStatus),
		ExpiresAt:          e.ExpiresAt,
	}
}

// GrantedResponse 已授权响应
type GrantedResponse struct {
	Granted     bool                `json:"granted"`
	Entitlement EntitlementResponse `json:"entitlement"`
}

// PaymentRequiredResponse 402响应，携带报价与x402支付要求
type PaymentRequiredResponse struct {
	Granted bool                               `json:"granted"`
	Reason  string                             `json:"reason,omitempty"`
	Quote   *logic.Quote                       `json:"quote"`
	Accepts []*facilitator.PaymentRequirements `json:"accepts"`
}

// EntitlementListResponse 买家授权列表响应
type EntitlementListResponse struct {
	Entitlements []EntitlementResponse `json:"entitlements"`
}

// DistributionResponse 分配期详情响应
type DistributionResponse struct {
	Distribution *model.EarnDistributionModel       `json:"distribution"`
	Shares       []model.EarnDistributionShareModel `json:"shares"`
}
