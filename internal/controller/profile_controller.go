package controller

import (
	"active_learn_backend/internal/service"
	"active_learn_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ProfileController struct {
	ProfileService *service.ProfileService
}

func NewProfileController(profileService *service.ProfileService) *ProfileController {
	return &ProfileController{ProfileService: profileService}
}

// @Summary 获取用户游戏化档案
// @Description 汇总30天指标、进行中任务、可用令牌与最近会话，短时缓存
// @Tags 游戏化档案
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Success 200 {object} util.Response
// @Router /users/{userId}/gamification-profile [get]
func (c *ProfileController) GetProfile(ctx *gin.Context) {
	userID, err := strconv.Atoi(ctx.Param("userId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid user ID")
		return
	}

	profile, err := c.ProfileService.GetProfile(ctx.Request.Context(), uint(userID))
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, profile)
}
