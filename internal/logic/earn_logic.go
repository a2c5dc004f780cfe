package logic

import (
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"github.com/techgangboss/agentstore-sub000/internal/model"
	"gorm.io/gorm"
)

// PublisherContribution 发布者在某分配期的手续费贡献
type PublisherContribution struct {
	PublisherId int64 `gorm:"column:publisher_id"`
	FeeMicro    int64 `gorm:"column:fee_micro"`
}

// ShareCalc 单个发布者的份额计算结果
type ShareCalc struct {
	PublisherId int64
	FeeMicro    int64
	SharePct    float64
	EarnMicro   int64
	Rank        int
}

// DistributionSummary 月度分配的执行结果
type DistributionSummary struct {
	Computed     bool                         `json:"computed"`
	Distribution *model.EarnDistributionModel `json:"distribution"`
	Publishers   int                          `json:"publishers"`
	PoolMicro    int64                        `json:"pool_micro"`
}

// EarnLogic 收益分配引擎
type EarnLogic struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewEarnLogic 创建收益分配逻辑
func NewEarnLogic(db *gorm.DB, cfg *config.Config) *EarnLogic {
	return &EarnLogic{db: db, cfg: cfg}
}

// PeriodBounds 计算now所在月份的上一个自然月边界（UTC）
func PeriodBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return thisMonth.AddDate(0, -1, 0), thisMonth
}

// ComputeShares 按贡献比例计算各发布者的份额。
// 排序规则：贡献降序，同贡献按发布者ID升序，保证结果确定。
// 份额金额按 floor(pool × fee / total) 计算，用big.Int避免溢出；
// 向下取整保证份额之和永不超过资金池，残差留在资金池里。
func ComputeShares(contribs []PublisherContribution, poolMicro int64) []ShareCalc {
	sorted := make([]PublisherContribution, len(contribs))
	copy(sorted, contribs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FeeMicro != sorted[j].FeeMicro {
			return sorted[i].FeeMicro > sorted[j].FeeMicro
		}
		return sorted[i].PublisherId < sorted[j].PublisherId
	})

	var totalMicro int64
	for _, c := range sorted {
		totalMicro += c.FeeMicro
	}

	shares := make([]ShareCalc, len(sorted))
	for i, c := range sorted {
		share := ShareCalc{
			PublisherId: c.PublisherId,
			FeeMicro:    c.FeeMicro,
			Rank:        i + 1,
		}
		if totalMicro > 0 {
			share.SharePct = float64(c.FeeMicro) / float64(totalMicro) * 100
			share.EarnMicro = floorMulDiv(poolMicro, c.FeeMicro, totalMicro)
		}
		shares[i] = share
	}

	return shares
}

// floorMulDiv 计算 floor(a × b / c)，中间值用big.Int防溢出
func floorMulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	v := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	v.Div(v, big.NewInt(c))
	return v.Int64()
}

// ComputeMonthly 聚合上一个自然月的已确认交易并写入分配记录。
// 以period_start唯一键幂等：该期已计算则原样返回，不重复计算。
// 当期没有任何交易也会写入零值记录，作为"已计算空期"哨兵。
func (e *EarnLogic) ComputeMonthly(now time.Time) (*DistributionSummary, error) {
	periodStart, periodEnd := PeriodBounds(now)

	// 幂等检查
	var existing model.EarnDistributionModel
	err := e.db.Where("period_start = ?", periodStart).First(&existing).Error
	if err == nil {
		return &DistributionSummary{Computed: false, Distribution: &existing, PoolMicro: existing.EarnPoolMicro}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 按发布者聚合当期已确认交易的手续费贡献
	var contribs []PublisherContribution
	err = e.db.Model(&model.TransactionModel{}).
		Select("publisher_id, COALESCE(SUM(platform_fee_micro), 0) AS fee_micro").
		Where("status = ? AND created_at >= ? AND created_at < ?",
			model.TransactionStatusConfirmed, periodStart, periodEnd).
		Group("publisher_id").
		Scan(&contribs).Error
	if err != nil {
		return nil, err
	}

	var totalFeeMicro int64
	for _, c := range contribs {
		totalFeeMicro += c.FeeMicro
	}
	poolMicro := RoundPct(totalFeeMicro, e.cfg.Payment.EarnPoolPct)
	shares := ComputeShares(contribs, poolMicro)

	distribution := &model.EarnDistributionModel{
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TotalFeeMicro:  totalFeeMicro,
		EarnPoolMicro:  poolMicro,
		PublisherCount: len(shares),
		Status:         model.DistributionStatusComputed,
	}

	// 分配记录与份额单事务写入，份额写入失败时分配记录一并回滚，
	// 不留下无份额的孤儿分配期
	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(distribution).Error; err != nil {
			return err
		}

		if len(shares) == 0 {
			return nil
		}

		payoutAddresses, err := e.payoutAddresses(tx, shares)
		if err != nil {
			return err
		}

		shareModels := make([]model.EarnDistributionShareModel, len(shares))
		for i, share := range shares {
			shareModels[i] = model.EarnDistributionShareModel{
				DistributionId: distribution.Id,
				PublisherId:    share.PublisherId,
				FeeMicro:       share.FeeMicro,
				SharePct:       share.SharePct,
				EarnMicro:      share.EarnMicro,
				Rank:           share.Rank,
				PayoutAddress:  payoutAddresses[share.PublisherId],
				PayoutStatus:   model.PayoutStatusPending,
			}
		}
		return tx.Create(&shareModels).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发计算竞争，以先写入的为准
			if loadErr := e.db.Where("period_start = ?", periodStart).First(&existing).Error; loadErr != nil {
				return nil, loadErr
			}
			return &DistributionSummary{Computed: false, Distribution: &existing, PoolMicro: existing.EarnPoolMicro}, nil
		}
		return nil, err
	}

	logger.Info("Computed earn distribution for period %s: publishers=%d total_fee=%s pool=%s",
		periodStart.Format("2006-01"), len(shares), FormatMicro(totalFeeMicro), FormatMicro(poolMicro))

	return &DistributionSummary{
		Computed:     true,
		Distribution: distribution,
		Publishers:   len(shares),
		PoolMicro:    poolMicro,
	}, nil
}

// GetDistribution 按期查询分配记录及份额
func (e *EarnLogic) GetDistribution(periodStart time.Time) (*model.EarnDistributionModel, []model.EarnDistributionShareModel, error) {
	var distribution model.EarnDistributionModel
	if err := e.db.Where("period_start = ?", periodStart).First(&distribution).Error; err != nil {
		return nil, nil, err
	}

	var shares []model.EarnDistributionShareModel
	if err := e.db.Where("distribution_id = ?", distribution.Id).
		Order("rank ASC").
		Find(&shares).Error; err != nil {
		return nil, nil, err
	}

	return &distribution, shares, nil
}

// payoutAddresses 查询各发布者当前的payout地址作为份额快照
func (e *EarnLogic) payoutAddresses(db *gorm.DB, shares []ShareCalc) (map[int64]string, error) {
	ids := make([]int64, len(shares))
	for i, share := range shares {
		ids[i] = share.PublisherId
	}

	var publishers []model.PublisherModel
	if err := db.Where("id IN ?", ids).Find(&publishers).Error; err != nil {
		return nil, err
	}

	addresses := make(map[int64]string, len(publishers))
	for _, publisher := range publishers {
		addresses[publisher.Id] = publisher.PayoutAddress
	}
	return addresses, nil
}
