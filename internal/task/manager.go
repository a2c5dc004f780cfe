package task

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/techgangboss/agentstore-sub000/internal/chain"
	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"gorm.io/gorm"
)

// Job 定时任务接口
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	db        *gorm.DB
	reader    chain.Reader
	config    *config.Config
}

// NewManager 创建新的任务管理器
func NewManager(db *gorm.DB, reader chain.Reader, cfg *config.Config) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Manager{
		scheduler: s,
		db:        db,
		reader:    reader,
		config:    cfg,
	}, nil
}

// Start 启动任务管理器
func Start(db *gorm.DB, reader chain.Reader, cfg *config.Config) *Manager {
	manager, err := NewManager(db, reader, cfg)
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	// 注册所有任务
	manager.register(NewReconcileJob(db, reader, cfg))
	manager.register(NewEarnDistributionJob(db, cfg))

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Task manager started successfully")
	return manager
}

// register 注册单个任务，单例模式防止同一任务自身重叠
func (m *Manager) register(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
