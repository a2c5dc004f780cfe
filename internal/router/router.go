package router

import (
	"github.com/gin-gonic/gin"
	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/facilitator"
	"github.com/techgangboss/agentstore-sub000/internal/handler"
	"github.com/techgangboss/agentstore-sub000/internal/logic"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, relay facilitator.Client, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "agentstore",
		})
	})

	settleLogic := logic.NewSettleLogic(db, relay, cfg)
	quoteLogic := logic.NewQuoteLogic(cfg)
	entitlementLogic := logic.NewEntitlementLogic(db)
	earnLogic := logic.NewEarnLogic(db, cfg)

	settleHandler := handler.NewSettleHandler(db, settleLogic, quoteLogic)
	accessHandler := handler.NewAccessHandler(db, entitlementLogic, quoteLogic)
	earnHandler := handler.NewEarnHandler(earnLogic)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		agents := v1.Group("/agents")
		{
			agents.POST("/:id/settle", settleHandler.Settle)
			agents.GET("/:id/access", accessHandler.CheckAccess)
		}

		v1.GET("/entitlements", accessHandler.ListEntitlements)
		v1.GET("/earnings/:period", earnHandler.GetDistribution)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
