package handler

import (
	"rewardsystem/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 档案相关
		profile := api.Group("/profile")
		{
			profile.POST("/get-or-create", h.GetOrCreateProfile)
			profile.GET("/balance", h.GetBalance)
		}

		// 积分发放
		credits := api.Group("/credits")
		{
			credits.POST("/add", h.AddCredits)
		}

		// 奖品目录
		reward := api.Group("/reward")
		{
			reward.POST("/create", h.CreateReward)
			reward.GET("/list", h.ListAvailableRewards)
			reward.GET("/list-all", h.ListAllRewards)
		}

		// 兑换
		redeem := api.Group("/redeem")
		{
			redeem.POST("/execute", h.RedeemReward)
		}

		// 查询
		api.GET("/redemption/history", h.GetRedemptionHistory)
		api.GET("/redemption/list", h.ListRedemptions)
		api.GET("/leaderboard", h.GetLeaderboard)
		api.GET("/transaction/list", h.ListTransactions)
		api.GET("/transaction/detail", h.GetTransaction)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
