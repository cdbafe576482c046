package controller

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/service"
	"active_learn_backend/internal/util"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	SessionService *service.SessionService
}

func NewSessionController(sessionService *service.SessionService) *SessionController {
	return &SessionController{SessionService: sessionService}
}

// @Summary 开始学习会话
// @Description 为用户创建一个新的计时学习会话
// @Tags 学习会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param session body service.StartSessionRequest true "会话信息"
// @Success 201 {object} util.Response
// @Router /sessions [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	var req service.StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.SessionService.StartSession(req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, session)
}

// @Summary 更新学习会话
// @Description 稀疏更新会话字段；已完成的会话不可再修改
// @Tags 学习会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path int true "会话ID"
// @Param update body service.UpdateSessionRequest true "更新内容"
// @Success 200 {object} util.Response
// @Router /sessions/{sessionId} [put]
func (c *SessionController) UpdateSession(ctx *gin.Context) {
	sessionID, err := strconv.Atoi(ctx.Param("sessionId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid session ID")
		return
	}

	var req service.UpdateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	updated, err := c.SessionService.UpdateSession(uint(sessionID), req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSessionNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrSessionCompleted):
			util.Error(ctx, http.StatusConflict, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	session, err := c.SessionService.GetSession(uint(sessionID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"session": session,
		"updated": updated,
	})
}

// @Summary 获取学习会话
// @Tags 学习会话
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path int true "会话ID"
// @Success 200 {object} util.Response
// @Router /sessions/{sessionId} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	sessionID, err := strconv.Atoi(ctx.Param("sessionId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid session ID")
		return
	}

	session, err := c.SessionService.GetSession(uint(sessionID))
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, session)
}

// @Summary 获取用户的进行中会话
// @Description 未完成的会话，最新开始的排在前面
// @Tags 学习会话
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Success 200 {object} util.Response
// @Router /users/{userId}/sessions/active [get]
func (c *SessionController) GetActiveSessions(ctx *gin.Context) {
	userID, err := strconv.Atoi(ctx.Param("userId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid user ID")
		return
	}

	sessions, err := c.SessionService.ListActiveSessions(uint(userID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, sessions)
}

// @Summary 获取用户会话指标
// @Description 最近 N 天的聚合指标，质量分为 1–3 刻度
// @Tags 学习会话
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Param days query int false "回看天数" default(7)
// @Success 200 {object} util.Response
// @Router /users/{userId}/sessions/metrics [get]
func (c *SessionController) GetSessionMetrics(ctx *gin.Context) {
	userID, err := strconv.Atoi(ctx.Param("userId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid user ID")
		return
	}

	days := 7
	if daysStr := ctx.Query("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil {
			days = d
		}
	}

	metrics, err := c.SessionService.GetSessionMetrics(uint(userID), days)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, metrics)
}

// @Summary 评定会话质量
// @Description 根据交互采样评定会话质量并写回会话
// @Tags 学习会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionId path int true "会话ID"
// @Param samples body []model.InteractionQuality true "交互采样"
// @Success 200 {object} util.Response
// @Router /sessions/{sessionId}/validate [post]
func (c *SessionController) ValidateSession(ctx *gin.Context) {
	sessionID, err := strconv.Atoi(ctx.Param("sessionId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid session ID")
		return
	}

	var samples []model.InteractionQuality
	if err := ctx.ShouldBindJSON(&samples); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	validation, err := c.SessionService.ValidateSession(uint(sessionID), samples)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSessionNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrSessionCompleted):
			util.Error(ctx, http.StatusConflict, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, validation)
}
