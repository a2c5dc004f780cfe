package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFeeExactSum(t *testing.T) {
	// 含分数分位余数的价格也必须精确拆分
	prices := []int64{
		5_000_000,  // $5.00
		1,          // 最小金额
		333_333,    // $0.333333
		999_999,    // 除不尽
		1_234_567,  // 任意余数
		10_000_001, // 刚超过整数美元
		7_777_777,
	}
	feePcts := []float64{0, 1, 2.5, 10, 20, 33.33, 50, 99, 100}

	for _, price := range prices {
		for _, pct := range feePcts {
			split := SplitFee(price, pct)
			assert.Equal(t, price, split.PlatformMicro+split.PublisherMicro,
				"price=%d pct=%v", price, pct)
			assert.GreaterOrEqual(t, split.PlatformMicro, int64(0))
			assert.GreaterOrEqual(t, split.PublisherMicro, int64(0))
		}
	}
}

func TestSplitFeeScenario(t *testing.T) {
	// $5.00，手续费20% → 平台$1.00，发布者$4.00
	split := SplitFee(5_000_000, 20)

	assert.Equal(t, int64(1_000_000), split.PlatformMicro)
	assert.Equal(t, int64(4_000_000), split.PublisherMicro)
	assert.Equal(t, 1.0, split.Platform)
	assert.Equal(t, 4.0, split.Publisher)
}

func TestSplitFeeRounding(t *testing.T) {
	// $0.000001，手续费20% → 0.2micro四舍五入为0，全额归发布者
	split := SplitFee(1, 20)
	assert.Equal(t, int64(0), split.PlatformMicro)
	assert.Equal(t, int64(1), split.PublisherMicro)

	// $0.000003，手续费50% → 1.5micro四舍五入为2
	split = SplitFee(3, 50)
	assert.Equal(t, int64(2), split.PlatformMicro)
	assert.Equal(t, int64(1), split.PublisherMicro)
}

func TestRoundPctLargeAmount(t *testing.T) {
	// $50亿的手续费总额，raw int64乘基点会溢出
	assert.Equal(t, int64(1_000_000_000_000_000), RoundPct(5_000_000_000_000_000, 20))
	assert.Equal(t, int64(500_000_000_000_000), RoundPct(5_000_000_000_000_000, 10))
}

func TestToMicro(t *testing.T) {
	assert.Equal(t, int64(5_000_000), ToMicro(5.0))
	assert.Equal(t, int64(333_333), ToMicro(0.333333))
	assert.Equal(t, int64(100), ToMicro(0.0001))
	assert.Equal(t, int64(0), ToMicro(0))
}

func TestFormatMicro(t *testing.T) {
	assert.Equal(t, "5.000000", FormatMicro(5_000_000))
	assert.Equal(t, "0.333333", FormatMicro(333_333))
}
