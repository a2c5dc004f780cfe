package repository

import (
	"fmt"

	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 禁用 GORM 的默认日志输出
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true, // 禁用复数表名
		},
		TranslateError: true, // 唯一约束冲突翻译为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&model.PublisherModel{},
		&model.AgentModel{},
		&model.EntitlementModel{},
		&model.TransactionModel{},
		&model.EarnDistributionModel{},
		&model.EarnDistributionShareModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 同一(agent, buyer)至多一条有效授权，由存储层兜底并发写入
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uidx_entitlement_active
		ON entitlement (agent_id, buyer_address) WHERE is_active`).Error; err != nil {
		return nil, fmt.Errorf("failed to create active entitlement index: %w", err)
	}

	return db, nil
}
