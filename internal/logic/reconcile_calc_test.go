package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/techgangboss/agentstore-sub000/internal/chain"
	"github.com/techgangboss/agentstore-sub000/internal/model"
)

func TestDecideTransition(t *testing.T) {
	tests := []struct {
		name    string
		receipt *chain.Receipt
		minConf int
		want    model.ConfirmationStatus
	}{
		{
			name:    "成功且深度足够",
			receipt: &chain.Receipt{Result: chain.ReceiptResultSuccess, BlockNumber: 100, Confirmations: 3},
			minConf: 1,
			want:    model.ConfirmationStatusConfirmed,
		},
		{
			name:    "成功但深度不足",
			receipt: &chain.Receipt{Result: chain.ReceiptResultSuccess, BlockNumber: 100, Confirmations: 1},
			minConf: 3,
			want:    model.ConfirmationStatusRevoked,
		},
		{
			name:    "链上执行失败",
			receipt: &chain.Receipt{Result: chain.ReceiptResultFailed, BlockNumber: 100, Confirmations: 5},
			minConf: 1,
			want:    model.ConfirmationStatusRevoked,
		},
		{
			name:    "截止后仍无回执",
			receipt: &chain.Receipt{Result: chain.ReceiptResultNone},
			minConf: 1,
			want:    model.ConfirmationStatusRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideTransition(tt.receipt, tt.minConf))
		})
	}
}

func TestMatchPayouts(t *testing.T) {
	shares := []model.EarnDistributionShareModel{
		{Id: 1, PayoutAddress: "0xAAAA000000000000000000000000000000000001", EarnMicro: 8_000_000},
		{Id: 2, PayoutAddress: "0xBBBB000000000000000000000000000000000002", EarnMicro: 2_000_000},
		{Id: 3, PayoutAddress: "0xCCCC000000000000000000000000000000000003", EarnMicro: 1_000_000},
	}
	events := []chain.TransferEvent{
		// 地址大小写不同也应命中
		{To: "0xaaaa000000000000000000000000000000000001", ValueMicro: 8_000_000, TxHash: "0xt1"},
		// 容差内的金额偏差被吸收
		{To: "0xBBBB000000000000000000000000000000000002", ValueMicro: 2_000_050, TxHash: "0xt2"},
		// 金额偏差超出容差，不命中
		{To: "0xCCCC000000000000000000000000000000000003", ValueMicro: 1_500_000, TxHash: "0xt3"},
	}

	matched := MatchPayouts(shares, events, 100)

	assert.Len(t, matched, 2)
	assert.Equal(t, "0xt1", matched[1].TxHash)
	assert.Equal(t, "0xt2", matched[2].TxHash)
	assert.NotContains(t, matched, int64(3))
}

func TestMatchPayoutsEventUsedOnce(t *testing.T) {
	// 同地址同金额的两个份额，单个事件只能消耗一次
	shares := []model.EarnDistributionShareModel{
		{Id: 1, PayoutAddress: "0xAA", EarnMicro: 1_000_000},
		{Id: 2, PayoutAddress: "0xAA", EarnMicro: 1_000_000},
	}
	events := []chain.TransferEvent{
		{To: "0xAA", ValueMicro: 1_000_000, TxHash: "0xt1"},
	}

	matched := MatchPayouts(shares, events, 0)

	assert.Len(t, matched, 1)
	assert.Contains(t, matched, int64(1))
}

func TestEstimateSinceBlock(t *testing.T) {
	// 1小时前、2秒出块、余量1000 → 回退1800+1000个区块
	since := EstimateSinceBlock(100_000, time.Hour, 2, 1000)
	assert.Equal(t, uint64(97_200), since)

	// 回退量超过链高时从0开始扫
	assert.Equal(t, uint64(0), EstimateSinceBlock(100, time.Hour, 2, 1000))
}
