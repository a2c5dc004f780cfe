package model

import (
	"time"
)

// EarnDistributionModel 收益分配期记录，每个自然月一条
type EarnDistributionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// period_start唯一，作为月度聚合的幂等键
	PeriodStart time.Time `json:"period_start" gorm:"not null;uniqueIndex"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null"`

	// 金额为micro单位
	TotalFeeMicro  int64 `json:"total_fee_micro" gorm:"default:0"`  // 当期平台手续费总额
	EarnPoolMicro  int64 `json:"earn_pool_micro" gorm:"default:0"`  // 回馈资金池
	PublisherCount int   `json:"publisher_count" gorm:"default:0"` // 参与分配的发布者数量

	Status DistributionStatus `json:"status" gorm:"default:'computed'"`
}

// DistributionStatus 分配期状态
type DistributionStatus string

const (
	DistributionStatusComputed DistributionStatus = "computed" // 已计算
	DistributionStatusPaid     DistributionStatus = "paid"     // 已全部打款
)

// TableName 自定义表名
func (EarnDistributionModel) TableName() string {
	return "earn_distribution"
}

// EarnDistributionShareModel 单个发布者在某分配期的份额
type EarnDistributionShareModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DistributionId int64 `json:"distribution_id" gorm:"not null;index"`
	PublisherId    int64 `json:"publisher_id" gorm:"not null;index"`

	FeeMicro     int64   `json:"fee_micro" gorm:"not null"`    // 该发布者的手续费贡献
	SharePct     float64 `json:"share_pct" gorm:"not null"`    // 占比（百分数）
	EarnMicro    int64   `json:"earn_micro" gorm:"not null"`   // 应得回馈金额
	Rank         int     `json:"rank" gorm:"not null"`         // 贡献排名，从1开始
	PayoutAddress string `json:"payout_address" gorm:"not null"` // 创建份额时的payout地址快照

	PayoutStatus PayoutStatus `json:"payout_status" gorm:"default:'pending';index"`
	PayoutTxHash string       `json:"payout_tx_hash"`
}

// PayoutStatus 打款状态
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending" // 待打款
	PayoutStatusPaid    PayoutStatus = "paid"    // 已打款
)

// TableName 自定义表名
func (EarnDistributionShareModel) TableName() string {
	return "earn_distribution_share"
}
