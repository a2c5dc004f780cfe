package model

import (
	"time"
)

// TransactionModel 链上结算记录，与授权记录一一对应
type TransactionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EntitlementId int64 `json:"entitlement_id" gorm:"not null;uniqueIndex"`
	AgentId       int64 `json:"agent_id" gorm:"not null;index"`
	PublisherId   int64 `json:"publisher_id" gorm:"not null;index"`

	// tx_hash全局唯一，防止同一笔结算凭证重复使用
	TxHash      string `json:"tx_hash" gorm:"not null;uniqueIndex"`
	FromAddress string `json:"from_address" gorm:"not null"`
	ToAddress   string `json:"to_address" gorm:"not null"`

	// 金额均为micro单位
	AmountMicro      int64  `json:"amount_micro" gorm:"not null"`
	PlatformFeeMicro int64  `json:"platform_fee_micro" gorm:"default:0"`
	PublisherMicro   int64  `json:"publisher_micro" gorm:"not null"`
	Currency         string `json:"currency" gorm:"default:'USDC'"`

	// 结算时发布者payout地址快照
	PayoutAddress string `json:"payout_address" gorm:"not null"`

	Status        TransactionStatus `json:"status" gorm:"default:'pending';index"`
	BlockNum      uint64            `json:"block_num"`
	Confirmations int               `json:"confirmations"`
}

// TransactionStatus 结算状态
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // 待确认
	TransactionStatusConfirmed TransactionStatus = "confirmed" // 已确认
	TransactionStatusFailed    TransactionStatus = "failed"    // 失败
)

// TableName 自定义表名
func (TransactionModel) TableName() string {
	return "transaction"
}
