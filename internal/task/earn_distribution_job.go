package task

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"github.com/techgangboss/agentstore-sub000/internal/logic"
	"gorm.io/gorm"
)

// EarnDistributionJob 月度收益分配任务。
// 每天触发一次，引擎按period_start幂等，当期已计算时直接空跑。
type EarnDistributionJob struct {
	earnLogic *logic.EarnLogic
	config    *config.Config
}

// NewEarnDistributionJob 创建收益分配任务
func NewEarnDistributionJob(db *gorm.DB, cfg *config.Config) *EarnDistributionJob {
	return &EarnDistributionJob{
		earnLogic: logic.NewEarnLogic(db, cfg),
		config:    cfg,
	}
}

// GetName 获取任务名称
func (j *EarnDistributionJob) GetName() string {
	return "earn_distribution"
}

// GetSchedule 获取调度配置，每天凌晨2点触发
func (j *EarnDistributionJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob("0 2 * * *", false)
}

// Execute 执行任务
func (j *EarnDistributionJob) Execute() {
	logger.Info("Starting earn distribution task")

	summary, err := j.earnLogic.ComputeMonthly(time.Now().UTC())
	if err != nil {
		logger.Error("Earn distribution failed: %v", err)
		return
	}

	if !summary.Computed {
		logger.Info("Earn distribution already computed for period %s",
			summary.Distribution.PeriodStart.Format("2006-01"))
		return
	}

	logger.Info("Earn distribution task completed: publishers=%d pool=%s",
		summary.Publishers, logic.FormatMicro(summary.PoolMicro))
}
