package controller

import (
	"active_learn_backend/internal/config"
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/service"
	"active_learn_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	BoardService *service.LeaderboardService
	Config       *config.Config
}

func NewLeaderboardController(boardService *service.LeaderboardService, cfg *config.Config) *LeaderboardController {
	return &LeaderboardController{BoardService: boardService, Config: cfg}
}

// @Summary 获取排行榜类型
// @Tags 排行榜
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /leaderboards/types [get]
func (c *LeaderboardController) GetTypes(ctx *gin.Context) {
	util.Success(ctx, model.LeaderboardTypes)
}

// @Summary 获取排行榜
// @Description 先查缓存，过期或缺失时重算并回填；可选标注请求用户的名次
// @Tags 排行榜
// @Produce json
// @Security ApiKeyAuth
// @Param type path string true "排行榜类型" Enums(course, cohort, topic, campus, global)
// @Param period query string false "时间窗口" Enums(weekly, monthly, all_time) default(weekly)
// @Param scopeId query int false "范围ID（同期组、课程等）"
// @Param userId query int false "要标注名次的用户ID"
// @Param limit query int false "返回条数" default(100)
// @Success 200 {object} util.Response
// @Router /leaderboards/{type} [get]
func (c *LeaderboardController) GetLeaderboard(ctx *gin.Context) {
	boardType := model.LeaderboardType(ctx.Param("type"))

	period := model.PeriodWeekly
	if value := ctx.Query("period"); value != "" {
		period = model.TimePeriod(value)
	}

	limit := c.Config.Gamification.LeaderboardLimit
	if limitStr := ctx.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	scopeID := optionalUintQuery(ctx, "scopeId")
	highlightUserID := optionalUintQuery(ctx, "userId")

	result, err := c.BoardService.Get(
		boardType, period, scopeID, limit, highlightUserID,
		c.Config.Gamification.LeaderboardTTLHours,
	)
	if err != nil {
		if errors.Is(err, util.ErrInvalidLeaderboard) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}
