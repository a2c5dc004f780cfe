package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/techgangboss/agentstore-sub000/internal/chain"
	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"github.com/techgangboss/agentstore-sub000/internal/logic"
	"gorm.io/gorm"
)

// ReconcileJob 对账任务：结算终局化 + 打款对账
type ReconcileJob struct {
	reconcileLogic *logic.ReconcileLogic
	config         *config.Config
}

// NewReconcileJob 创建对账任务
func NewReconcileJob(db *gorm.DB, reader chain.Reader, cfg *config.Config) *ReconcileJob {
	return &ReconcileJob{
		reconcileLogic: logic.NewReconcileLogic(db, reader, cfg),
		config:         cfg,
	}
}

// GetName 获取任务名称
func (j *ReconcileJob) GetName() string {
	return "settlement_reconciler"
}

// GetSchedule 获取调度配置
func (j *ReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.ReconcileInterval) * time.Second)
}

// Execute 执行任务，两个阶段相互独立，一个失败不影响另一个
func (j *ReconcileJob) Execute() {
	logger.Info("Starting settlement reconciliation task")
	ctx := context.Background()

	if _, err := j.reconcileLogic.FinalizeSettlements(ctx); err != nil {
		logger.Error("Settlement finalization failed: %v", err)
	}

	if _, err := j.reconcileLogic.ReconcilePayouts(ctx); err != nil {
		logger.Error("Payout reconciliation failed: %v", err)
	}
}
