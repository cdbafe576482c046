package controller

import (
	"active_learn_backend/internal/config"
	"active_learn_backend/internal/service"
	"active_learn_backend/internal/util"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type GraceTokenController struct {
	TokenService *service.GraceTokenService
	Config       *config.Config
}

func NewGraceTokenController(tokenService *service.GraceTokenService, cfg *config.Config) *GraceTokenController {
	return &GraceTokenController{TokenService: tokenService, Config: cfg}
}

// @Summary 授予宽限令牌
// @Description 给用户授予一个限时的例外凭证
// @Tags 宽限令牌
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param token body service.GrantTokenRequest true "令牌信息"
// @Success 201 {object} util.Response
// @Router /grace-tokens [post]
func (c *GraceTokenController) GrantToken(ctx *gin.Context) {
	var req service.GrantTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.TokenService.Grant(req, c.Config.Gamification.TokenTTLDays)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, result)
}

// @Summary 获取用户的宽限令牌
// @Description unusedOnly 时排除已使用与已过期的令牌
// @Tags 宽限令牌
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Param unusedOnly query bool false "只看可用令牌" default(true)
// @Success 200 {object} util.Response
// @Router /users/{userId}/grace-tokens [get]
func (c *GraceTokenController) GetUserTokens(ctx *gin.Context) {
	userID, err := strconv.Atoi(ctx.Param("userId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid user ID")
		return
	}

	unusedOnly := true
	if value := ctx.Query("unusedOnly"); value != "" {
		unusedOnly = value == "true" || value == "1"
	}

	tokens, err := c.TokenService.ListTokens(uint(userID), unusedOnly)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, tokens)
}

type useTokenRequest struct {
	UsageReason string `json:"usageReason" binding:"required"`
}

// @Summary 兑换宽限令牌
// @Description 未使用→已使用的单向转换；缺失/已使用/已过期分别返回对应失败
// @Tags 宽限令牌
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param tokenId path int true "令牌ID"
// @Param usage body useTokenRequest true "用途说明"
// @Success 200 {object} util.Response
// @Router /grace-tokens/{tokenId}/use [post]
func (c *GraceTokenController) UseToken(ctx *gin.Context) {
	tokenID, err := strconv.Atoi(ctx.Param("tokenId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid token ID")
		return
	}

	var req useTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	outcome, err := c.TokenService.Redeem(uint(tokenID), req.UsageReason)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	switch outcome {
	case service.RedeemOK:
		util.Success(ctx, gin.H{
			"tokenId": tokenID,
			"used":    true,
			"usedAt":  time.Now(),
			"outcome": outcome,
		})
	case service.RedeemNotFound:
		util.NotFound(ctx)
	default:
		// already_used / expired
		util.Error(ctx, http.StatusConflict, string(outcome))
	}
}
