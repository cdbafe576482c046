package controller

import (
	"active_learn_backend/internal/config"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/service"
	"active_learn_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	BoardService *service.LeaderboardService
	SessionRepo  *repository.SessionRepository
	QuestRepo    *repository.QuestRepository
	TokenRepo    *repository.GraceTokenRepository
	Config       *config.Config
}

func NewAdminController(
	boardService *service.LeaderboardService,
	sessionRepo *repository.SessionRepository,
	questRepo *repository.QuestRepository,
	tokenRepo *repository.GraceTokenRepository,
	cfg *config.Config,
) *AdminController {
	return &AdminController{
		BoardService: boardService,
		SessionRepo:  sessionRepo,
		QuestRepo:    questRepo,
		TokenRepo:    tokenRepo,
		Config:       cfg,
	}
}

// @Summary 刷新全部排行榜
// @Description 遍历 5 种类型 × 3 个周期，无条件重算并回填缓存
// @Tags 管理端
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /admin/refresh-leaderboards [post]
func (c *AdminController) RefreshLeaderboards(ctx *gin.Context) {
	refreshed, err := c.BoardService.RefreshAll(
		c.Config.Gamification.LeaderboardLimit,
		c.Config.Gamification.RefreshTTLHours,
	)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"refreshedCount": refreshed,
		"refreshedAt":    time.Now(),
	})
}

// @Summary 游戏化系统统计
// @Tags 管理端
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /admin/stats [get]
func (c *AdminController) GetStats(ctx *gin.Context) {
	activeSessions, err := c.SessionRepo.CountActive()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	completedQuests, err := c.QuestRepo.CountCompleted()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	grantedTokens, err := c.TokenRepo.CountGranted()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	avgQuality, err := c.SessionRepo.GlobalAvgQuality()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"totalActiveSessions":     activeSessions,
		"totalQuestsCompleted":    completedQuests,
		"totalGraceTokensGranted": grantedTokens,
		"avgSessionQuality":       avgQuality,
		"leaderboardCacheHitRate": c.BoardService.CacheHitRate(),
		"lastUpdated":             time.Now(),
	})
}
