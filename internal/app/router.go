package app

import (
	"active_learn_backend/docs"
	"active_learn_backend/internal/config"
	"active_learn_backend/internal/middleware"
	"active_learn_backend/internal/model"

	"active_learn_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerSessionRoutes(authGroup, c)
		a.registerQuestRoutes(authGroup, c)
		a.registerGraceTokenRoutes(authGroup, c)
		a.registerLeaderboardRoutes(authGroup, c)

		authGroup.GET("/users/:userId/gamification-profile", c.profile.GetProfile)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerSessionRoutes(group *gin.RouterGroup, c *controllers) {
	group.POST("/sessions", c.session.StartSession)
	group.GET("/sessions/:sessionId", c.session.GetSession)
	group.PUT("/sessions/:sessionId", c.session.UpdateSession)
	group.POST("/sessions/:sessionId/validate", c.session.ValidateSession)
	group.GET("/users/:userId/sessions/active", c.session.GetActiveSessions)
	group.GET("/users/:userId/sessions/metrics", c.session.GetSessionMetrics)
}

func (a *App) registerQuestRoutes(group *gin.RouterGroup, c *controllers) {
	group.POST("/quests", c.quest.CreateQuest)
	group.GET("/quests/active", c.quest.GetActiveQuests)
	group.GET("/users/:userId/quests/:questId/progress", c.quest.GetProgress)
	group.POST("/users/:userId/quests/:questId/update-progress", c.quest.UpdateProgress)
	group.POST("/users/:userId/quests/:questId/claim-reward", c.quest.ClaimReward)
}

func (a *App) registerGraceTokenRoutes(group *gin.RouterGroup, c *controllers) {
	group.POST("/grace-tokens", c.graceToken.GrantToken)
	group.GET("/users/:userId/grace-tokens", c.graceToken.GetUserTokens)
	group.POST("/grace-tokens/:tokenId/use", c.graceToken.UseToken)
}

func (a *App) registerLeaderboardRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/leaderboards/types", c.board.GetTypes)
	group.GET("/leaderboards/:type", c.board.GetLeaderboard)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/refresh-leaderboards", c.admin.RefreshLeaderboards)
		admin.GET("/stats", c.admin.GetStats)
	}
}
