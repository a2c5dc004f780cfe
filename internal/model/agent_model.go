package model

import (
	"time"
)

// AgentModel Agent商品模型
type AgentModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Name        string `json:"name" gorm:"not null" binding:"required"`
	Description string `json:"description" gorm:"type:text"`
	Category    string `json:"category"`

	// 定价信息（金额为micro单位，1美元 = 1_000_000）
	PriceMicro   int64        `json:"price_micro" gorm:"default:0"`
	Currency     string       `json:"currency" gorm:"default:'USDC'"`
	PricingModel PricingModel `json:"pricing_model" gorm:"default:'one_time'"`

	// 发布者信息（payout地址从publisher冗余，结算时以此为准）
	PublisherId   int64  `json:"publisher_id" gorm:"not null;index"`
	PayoutAddress string `json:"payout_address" gorm:"not null"`

	// 统计
	Downloads int64 `json:"downloads" gorm:"default:0"`

	// 状态
	Status AgentStatus `json:"status" gorm:"default:'active'"`
}

// PricingModel 定价模式
type PricingModel string

const (
	PricingModelFree    PricingModel = "free"     // 免费
	PricingModelOneTime PricingModel = "one_time" // 一次性买断
)

// AgentStatus Agent状态
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"   // 上架中
	AgentStatusDisabled AgentStatus = "disabled" // 已下架
)

// TableName 自定义表名
func (AgentModel) TableName() string {
	return "agent"
}
