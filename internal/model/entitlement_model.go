package model

import (
	"time"
)

// EntitlementModel 购买授权记录
type EntitlementModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AgentId      int64  `json:"agent_id" gorm:"not null;index:idx_entitlement_agent_buyer"`
	BuyerAddress string `json:"buyer_address" gorm:"not null;index:idx_entitlement_agent_buyer"` // 统一小写
	Token        string `json:"token" gorm:"uniqueIndex"`                                        // 访问令牌

	PricingModel PricingModel `json:"pricing_model" gorm:"not null"`
	AmountMicro  int64        `json:"amount_micro" gorm:"default:0"` // 实际支付金额（micro）
	Currency     string       `json:"currency" gorm:"default:'USDC'"`

	IsActive             bool               `json:"is_active" gorm:"default:true;index"`
	ConfirmationStatus   ConfirmationStatus `json:"confirmation_status" gorm:"default:'preconfirmed';index"`
	VerificationDeadline *time.Time         `json:"verification_deadline"` // 预确认的复核截止时间
	ExpiresAt            *time.Time         `json:"expires_at"`            // nil表示永久有效
}

// ConfirmationStatus 结算确认状态
type ConfirmationStatus string

const (
	ConfirmationStatusPreconfirmed ConfirmationStatus = "preconfirmed" // 预确认，等待链上终局
	ConfirmationStatusConfirmed    ConfirmationStatus = "confirmed"    // 已确认
	ConfirmationStatusRevoked      ConfirmationStatus = "revoked"      // 已撤销
)

// IsExpired 判断授权是否已过期（读取时评估，不依赖后台清理）
func (e *EntitlementModel) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// TableName 自定义表名
func (EntitlementModel) TableName() string {
	return "entitlement"
}
