package model

import (
	"time"
)

// PublisherModel 发布者模型
type PublisherModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name          string `json:"name" gorm:"not null"`
	PayoutAddress string `json:"payout_address" gorm:"not null"`
	Verified      bool   `json:"verified" gorm:"default:false"`
}

// TableName 自定义表名
func (PublisherModel) TableName() string {
	return "publisher"
}
