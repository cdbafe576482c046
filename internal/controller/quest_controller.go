package controller

import (
	"active_learn_backend/internal/service"
	"active_learn_backend/internal/util"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type QuestController struct {
	QuestService *service.QuestService
}

func NewQuestController(questService *service.QuestService) *QuestController {
	return &QuestController{QuestService: questService}
}

// @Summary 创建每周任务
// @Description 创建一个周窗口内的多维度挑战，创建后不可修改
// @Tags 每周任务
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param quest body service.CreateQuestRequest true "任务信息"
// @Success 201 {object} util.Response
// @Router /quests [post]
func (c *QuestController) CreateQuest(ctx *gin.Context) {
	var req service.CreateQuestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quest, err := c.QuestService.CreateQuest(req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Created(ctx, quest)
}

// @Summary 获取当周生效任务
// @Description 按组织/同期组过滤，范围为空的任务对所有人可见
// @Tags 每周任务
// @Produce json
// @Security ApiKeyAuth
// @Param orgId query int false "组织ID"
// @Param cohortId query int false "同期组ID"
// @Success 200 {object} util.Response
// @Router /quests/active [get]
func (c *QuestController) GetActiveQuests(ctx *gin.Context) {
	orgID := optionalUintQuery(ctx, "orgId")
	cohortID := optionalUintQuery(ctx, "cohortId")

	quests, err := c.QuestService.ListActiveQuests(orgID, cohortID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, quests)
}

// @Summary 获取任务进度
// @Tags 每周任务
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Param questId path int true "任务ID"
// @Success 200 {object} util.Response
// @Router /users/{userId}/quests/{questId}/progress [get]
func (c *QuestController) GetProgress(ctx *gin.Context) {
	userID, questID, ok := userQuestParams(ctx)
	if !ok {
		return
	}

	completion, err := c.QuestService.GetProgress(userID, questID)
	if err != nil {
		if errors.Is(err, util.ErrQuestProgressNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, completion)
}

// @Summary 刷新任务进度
// @Description 根据周窗口内的会话活动重新计算并落库进度
// @Tags 每周任务
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Param questId path int true "任务ID"
// @Success 200 {object} util.Response
// @Router /users/{userId}/quests/{questId}/update-progress [post]
func (c *QuestController) UpdateProgress(ctx *gin.Context) {
	userID, questID, ok := userQuestParams(ctx)
	if !ok {
		return
	}

	result, err := c.QuestService.UpdateProgress(userID, questID)
	if err != nil {
		if errors.Is(err, util.ErrQuestNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

// @Summary 领取任务奖励
// @Description 任务完成后一次性领取积分、徽章与宽限令牌，重复领取会失败
// @Tags 每周任务
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Param questId path int true "任务ID"
// @Success 200 {object} util.Response
// @Router /users/{userId}/quests/{questId}/claim-reward [post]
func (c *QuestController) ClaimReward(ctx *gin.Context) {
	userID, questID, ok := userQuestParams(ctx)
	if !ok {
		return
	}

	completion, err := c.QuestService.ClaimReward(userID, questID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrQuestProgressNotFound), errors.Is(err, util.ErrQuestNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrQuestNotCompleted), errors.Is(err, util.ErrRewardAlreadyClaimed):
			util.Error(ctx, http.StatusConflict, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, completion)
}

func userQuestParams(ctx *gin.Context) (uint, uint, bool) {
	userID, err := strconv.Atoi(ctx.Param("userId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid user ID")
		return 0, 0, false
	}
	questID, err := strconv.Atoi(ctx.Param("questId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid quest ID")
		return 0, 0, false
	}
	return uint(userID), uint(questID), true
}

func optionalUintQuery(ctx *gin.Context, name string) *uint {
	value := ctx.Query(name)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return nil
	}
	id := uint(parsed)
	return &id
}
