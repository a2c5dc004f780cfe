package main

import (
	"github.com/gin-gonic/gin"
	"github.com/techgangboss/agentstore-sub000/internal/chain"
	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/facilitator"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"github.com/techgangboss/agentstore-sub000/internal/repository"
	"github.com/techgangboss/agentstore-sub000/internal/router"
	"github.com/techgangboss/agentstore-sub000/internal/task"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 按配置初始化日志器
	level := logger.ParseLogLevel(cfg.Log.Level)
	if cfg.Log.Output == "file" {
		l, err := logger.NewWithFileRotation(level, cfg.Log.File)
		if err != nil {
			logger.Fatal("Failed to initialize file logger: %v", err)
		}
		logger.SetDefaultLogger(l)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化链上读取器
	reader, err := chain.Init(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain reader: %v", err)
	}

	// 初始化结算中继客户端
	relay := facilitator.NewHTTPClient(cfg.Facilitator)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, relay, cfg)

	// 启动定时任务
	manager := task.Start(db, reader, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
