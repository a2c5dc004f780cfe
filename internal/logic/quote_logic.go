package logic

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/facilitator"
	"github.com/techgangboss/agentstore-sub000/internal/model"
)

// Quote 支付报价，随402响应下发，结算时原样带回
type Quote struct {
	AgentId     int64     `json:"agent_id"`
	AmountMicro int64     `json:"amount_micro"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	PayTo       string    `json:"pay_to"`
	Asset       string    `json:"asset"`
	Network     string    `json:"network"`
	Nonce       string    `json:"nonce"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// QuoteLogic 报价生成
type QuoteLogic struct {
	cfg *config.Config
}

// NewQuoteLogic 创建报价逻辑
func NewQuoteLogic(cfg *config.Config) *QuoteLogic {
	return &QuoteLogic{cfg: cfg}
}

// BuildQuote 按agent当前价格生成报价
func (q *QuoteLogic) BuildQuote(agent *model.AgentModel) *Quote {
	return &Quote{
		AgentId:     agent.Id,
		AmountMicro: agent.PriceMicro,
		Amount:      FormatMicro(agent.PriceMicro),
		Currency:    agent.Currency,
		PayTo:       q.cfg.Chain.PlatformAddress,
		Asset:       q.cfg.Chain.AssetAddress,
		Network:     q.cfg.Chain.Network,
		Nonce:       uuid.NewString(),
		ExpiresAt:   time.Now().UTC().Add(q.cfg.Payment.QuoteTTL()),
	}
}

// Requirements 将报价转换为中继要求的PaymentRequirements
func (q *QuoteLogic) Requirements(agent *model.AgentModel, quote *Quote) *facilitator.PaymentRequirements {
	return &facilitator.PaymentRequirements{
		Scheme:            "exact",
		Network:           quote.Network,
		MaxAmountRequired: fmt.Sprintf("%d", quote.AmountMicro),
		Resource:          fmt.Sprintf("agent://%d", agent.Id),
		Description:       agent.Name,
		PayTo:             quote.PayTo,
		MaxTimeoutSeconds: q.cfg.Facilitator.TimeoutSeconds,
		Asset:             quote.Asset,
	}
}
