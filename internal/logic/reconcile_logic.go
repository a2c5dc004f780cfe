package logic

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/techgangboss/agentstore-sub000/internal/chain"
	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"github.com/techgangboss/agentstore-sub000/internal/model"
	"gorm.io/gorm"
)

// FinalizeSummary 结算终局化的批次统计
type FinalizeSummary struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Revoked   int `json:"revoked"`
	Errors    int `json:"errors"`
}

// PayoutSummary 打款对账的批次统计
type PayoutSummary struct {
	Pending           int `json:"pending"`
	Matched           int `json:"matched"`
	DistributionsPaid int `json:"distributions_paid"`
	Errors            int `json:"errors"`
}

// ReconcileLogic 对账逻辑：预确认结算的终局化 + 回馈打款的对账。
// 两个阶段都是幂等的，按行执行且以状态谓词筛选，重复或并发运行只会
// 产生多余的空读。
type ReconcileLogic struct {
	db          *gorm.DB
	reader      chain.Reader
	cfg         *config.Config
	entitlement *EntitlementLogic
}

// NewReconcileLogic 创建对账逻辑，链上读取器由外部注入
func NewReconcileLogic(db *gorm.DB, reader chain.Reader, cfg *config.Config) *ReconcileLogic {
	return &ReconcileLogic{
		db:          db,
		reader:      reader,
		cfg:         cfg,
		entitlement: NewEntitlementLogic(db),
	}
}

// DecideTransition 复核截止后的状态迁移判定。
// 回执成功且确认深度足够才确认；失败撤销；没有回执或结果不明
// 也撤销——宁可撤销存疑的访问，不给未确认的支付无限期信任。
func DecideTransition(receipt *chain.Receipt, minConfirmations int) model.ConfirmationStatus {
	if receipt.Result == chain.ReceiptResultSuccess && receipt.Confirmations >= minConfirmations {
		return model.ConfirmationStatusConfirmed
	}
	return model.ConfirmationStatusRevoked
}

// FinalizeSettlements 推进所有复核截止时间已过的预确认结算。
// 单行失败只计数不中断，坏行不能阻塞整个批次。
func (r *ReconcileLogic) FinalizeSettlements(ctx context.Context) (*FinalizeSummary, error) {
	now := time.Now().UTC()

	var entitlements []model.EntitlementModel
	err := r.db.Where("confirmation_status = ? AND verification_deadline <= ?",
		model.ConfirmationStatusPreconfirmed, now).
		Find(&entitlements).Error
	if err != nil {
		return nil, err
	}

	summary := &FinalizeSummary{Checked: len(entitlements)}
	if len(entitlements) == 0 {
		return summary, nil
	}

	poolSize := r.cfg.Task.WorkerPoolSize
	if poolSize <= 0 || poolSize > len(entitlements) {
		poolSize = len(entitlements)
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var confirmed, revoked, failed int64
	var wg sync.WaitGroup

	for i := range entitlements {
		entitlement := entitlements[i]
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			switch r.finalizeOne(ctx, &entitlement) {
			case model.ConfirmationStatusConfirmed:
				atomic.AddInt64(&confirmed, 1)
			case model.ConfirmationStatusRevoked:
				atomic.AddInt64(&revoked, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
		})
		if submitErr != nil {
			wg.Done()
			atomic.AddInt64(&failed, 1)
			logger.Error("Failed to submit finalize task: %v", submitErr)
		}
	}
	wg.Wait()

	summary.Confirmed = int(confirmed)
	summary.Revoked = int(revoked)
	summary.Errors = int(failed)

	logger.Info("Settlement finalization completed: checked=%d confirmed=%d revoked=%d errors=%d",
		summary.Checked, summary.Confirmed, summary.Revoked, summary.Errors)

	return summary, nil
}

// finalizeOne 处理单条预确认授权，返回迁移结果，空串表示本轮跳过
func (r *ReconcileLogic) finalizeOne(ctx context.Context, entitlement *model.EntitlementModel) model.ConfirmationStatus {
	var transaction model.TransactionModel
	if err := r.db.Where("entitlement_id = ?", entitlement.Id).First(&transaction).Error; err != nil {
		logger.Error("Failed to fetch transaction for entitlement %d: %v", entitlement.Id, err)
		return ""
	}

	receipt, err := r.reader.GetReceipt(ctx, transaction.TxHash)
	if err != nil {
		// 瞬时RPC错误，留给下一轮重试
		logger.Error("Failed to fetch receipt for tx %s: %v", transaction.TxHash, err)
		return ""
	}

	next := DecideTransition(receipt, r.cfg.Chain.Confirmations)

	if next == model.ConfirmationStatusConfirmed {
		updates := map[string]interface{}{
			"confirmation_status":   model.ConfirmationStatusConfirmed,
			"verification_deadline": nil,
		}
		if err := r.db.Model(entitlement).Updates(updates).Error; err != nil {
			logger.Error("Failed to confirm entitlement %d: %v", entitlement.Id, err)
			return ""
		}
		txUpdates := map[string]interface{}{
			"status":        model.TransactionStatusConfirmed,
			"block_num":     receipt.BlockNumber,
			"confirmations": receipt.Confirmations,
		}
		if err := r.db.Model(&transaction).Updates(txUpdates).Error; err != nil {
			logger.Error("Failed to confirm transaction %d: %v", transaction.Id, err)
		}
		return model.ConfirmationStatusConfirmed
	}

	reason := "链上回执失败"
	if receipt.Result != chain.ReceiptResultFailed {
		reason = "复核截止仍未终局"
	}
	if err := r.entitlement.Revoke(entitlement.Id, reason); err != nil {
		logger.Error("Failed to revoke entitlement %d: %v", entitlement.Id, err)
		return ""
	}
	if err := r.db.Model(&transaction).Update("status", model.TransactionStatusFailed).Error; err != nil {
		logger.Error("Failed to fail transaction %d: %v", transaction.Id, err)
	}
	return model.ConfirmationStatusRevoked
}

// EstimateSinceBlock 由最早待打款份额的创建时间估算扫描起始区块，
// 再减去安全余量，避免平均出块时间波动漏掉事件。
func EstimateSinceBlock(latest uint64, elapsed time.Duration, blockTimeSeconds int, buffer int) uint64 {
	if blockTimeSeconds <= 0 {
		blockTimeSeconds = 1
	}
	back := uint64(elapsed.Seconds())/uint64(blockTimeSeconds) + uint64(buffer)
	if back >= latest {
		return 0
	}
	return latest - back
}

// MatchPayouts 将链上转账事件匹配到待打款份额。
// 按payout地址匹配，金额允许小幅绝对容差吸收取整误差；
// 每个事件至多消耗一次，每个份额至多匹配一次。
func MatchPayouts(shares []model.EarnDistributionShareModel, events []chain.TransferEvent, toleranceMicro int64) map[int64]chain.TransferEvent {
	matched := make(map[int64]chain.TransferEvent)
	used := make(map[int]bool)

	for _, share := range shares {
		for i, event := range events {
			if used[i] {
				continue
			}
			if !strings.EqualFold(share.PayoutAddress, event.To) {
				continue
			}
			diff := event.ValueMicro - share.EarnMicro
			if diff < 0 {
				diff = -diff
			}
			if diff > toleranceMicro {
				continue
			}
			matched[share.Id] = event
			used[i] = true
			break
		}
	}

	return matched
}

// ReconcilePayouts 对账回馈打款：扫描平台地址发出的转账，
// 将命中的份额标记为已打款；某分配期全部份额打款完成后，
// 父记录同步标记为paid。
func (r *ReconcileLogic) ReconcilePayouts(ctx context.Context) (*PayoutSummary, error) {
	var shares []model.EarnDistributionShareModel
	err := r.db.Where("payout_status = ? AND earn_micro > 0", model.PayoutStatusPending).
		Order("created_at ASC").
		Find(&shares).Error
	if err != nil {
		return nil, err
	}

	summary := &PayoutSummary{Pending: len(shares)}
	if len(shares) == 0 {
		return summary, nil
	}

	latest, err := r.reader.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(shares[0].CreatedAt)
	since := EstimateSinceBlock(latest, elapsed, r.cfg.Chain.BlockTimeSeconds, r.cfg.Payment.PayoutScanBuffer)

	events, err := r.reader.GetTransferLogs(ctx, r.cfg.Chain.PlatformAddress, since)
	if err != nil {
		return nil, err
	}

	matched := MatchPayouts(shares, events, r.cfg.Payment.PayoutToleranceMicro)

	distributionIds := make(map[int64]bool)
	for _, share := range shares {
		event, ok := matched[share.Id]
		if !ok {
			continue
		}
		updates := map[string]interface{}{
			"payout_status":  model.PayoutStatusPaid,
			"payout_tx_hash": strings.ToLower(event.TxHash),
		}
		if err := r.db.Model(&model.EarnDistributionShareModel{}).
			Where("id = ? AND payout_status = ?", share.Id, model.PayoutStatusPending).
			Updates(updates).Error; err != nil {
			logger.Error("Failed to mark share %d paid: %v", share.Id, err)
			summary.Errors++
			continue
		}
		summary.Matched++
		distributionIds[share.DistributionId] = true

		logger.Info("Matched payout for share %d: tx %s, amount %s",
			share.Id, event.TxHash, FormatMicro(share.EarnMicro))
	}

	for distributionId := range distributionIds {
		var remaining int64
		if err := r.db.Model(&model.EarnDistributionShareModel{}).
			Where("distribution_id = ? AND payout_status = ?", distributionId, model.PayoutStatusPending).
			Count(&remaining).Error; err != nil {
			logger.Error("Failed to count pending shares for distribution %d: %v", distributionId, err)
			summary.Errors++
			continue
		}
		if remaining > 0 {
			continue
		}
		if err := r.db.Model(&model.EarnDistributionModel{}).
			Where("id = ?", distributionId).
			Update("status", model.DistributionStatusPaid).Error; err != nil {
			logger.Error("Failed to mark distribution %d paid: %v", distributionId, err)
			summary.Errors++
			continue
		}
		summary.DistributionsPaid++
	}

	logger.Info("Payout reconciliation completed: pending=%d matched=%d distributions_paid=%d errors=%d",
		summary.Pending, summary.Matched, summary.DistributionsPaid, summary.Errors)

	return summary, nil
}
