package logic

import (
	"math"
	"math/big"
	"strconv"
)

// MicroPerUnit micro单位换算系数，1美元 = 1_000_000 micro
const MicroPerUnit = 1_000_000

// ToMicro 十进制金额转micro，四舍五入到最近整数
func ToMicro(amount float64) int64 {
	return int64(math.Round(amount * MicroPerUnit))
}

// FromMicro micro转十进制金额
func FromMicro(micro int64) float64 {
	return float64(micro) / MicroPerUnit
}

// FormatMicro micro转十进制字符串，保留6位小数
func FormatMicro(micro int64) string {
	return strconv.FormatFloat(FromMicro(micro), 'f', 6, 64)
}

// FeeSplit 手续费拆分结果
type FeeSplit struct {
	PlatformMicro  int64   `json:"platform_micro"`
	PublisherMicro int64   `json:"publisher_micro"`
	Platform       float64 `json:"platform"`
	Publisher      float64 `json:"publisher"`
}

// SplitFee 按平台手续费比例拆分价格。
// 全部用整数micro计算，发布者份额取减法余量，保证
// platform + publisher == price 恒等成立。
func SplitFee(priceMicro int64, feePct float64) FeeSplit {
	platform := RoundPct(priceMicro, feePct)
	publisher := priceMicro - platform

	return FeeSplit{
		PlatformMicro:  platform,
		PublisherMicro: publisher,
		Platform:       FromMicro(platform),
		Publisher:      FromMicro(publisher),
	}
}

// RoundPct 金额按百分比取整，四舍五入。
// 百分比先放大为基点避免浮点参与金额运算，
// 乘积用big.Int计算防止大额溢出。
func RoundPct(amountMicro int64, pct float64) int64 {
	bps := int64(math.Round(pct * 100))
	v := new(big.Int).Mul(big.NewInt(amountMicro), big.NewInt(bps))
	v.Add(v, big.NewInt(5000))
	v.Div(v, big.NewInt(10000))
	return v.Int64()
}
