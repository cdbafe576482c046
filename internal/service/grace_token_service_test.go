package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newGraceTokenService(t *testing.T) (*GraceTokenService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewGraceTokenService(repository.NewGraceTokenRepository(db)), db
}

func TestGrantDefaultTTL(t *testing.T) {
	svc, _ := newGraceTokenService(t)

	result, err := svc.Grant(GrantTokenRequest{
		UserID:    1,
		TokenType: model.TokenStreakSave,
		Reason:    "missed a day while traveling",
	}, 30)
	require.NoError(t, err)

	token := result.Token
	assert.NotZero(t, token.ID)
	assert.False(t, token.IsUsed)
	require.NotNil(t, token.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *token.ExpiresAt, 5*time.Second)
	assert.Equal(t, int64(1), result.RemainingTokens)
}

func TestGrantExplicitTTLOverridesDefault(t *testing.T) {
	svc, _ := newGraceTokenService(t)

	result, err := svc.Grant(GrantTokenRequest{
		UserID:    1,
		TokenType: model.TokenSessionExtension,
		Reason:    "exam week",
		TTLDays:   7,
	}, 30)
	require.NoError(t, err)

	require.NotNil(t, result.Token.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *result.Token.ExpiresAt, 5*time.Second)
}

func TestRedeemSingleUse(t *testing.T) {
	svc, db := newGraceTokenService(t)

	result, err := svc.Grant(GrantTokenRequest{
		UserID:    1,
		TokenType: model.TokenQuestRetry,
		Reason:    "quest reward",
	}, 30)
	require.NoError(t, err)

	outcome, err := svc.Redeem(result.Token.ID, "retrying the dp quest")
	require.NoError(t, err)
	assert.Equal(t, RedeemOK, outcome)

	var token model.GraceToken
	require.NoError(t, db.First(&token, result.Token.ID).Error)
	assert.True(t, token.IsUsed)
	assert.NotNil(t, token.UsedDate)
	assert.Equal(t, "retrying the dp quest", token.UsedReason)

	// 已使用到已使用没有转换路径
	outcome, err = svc.Redeem(result.Token.ID, "double dip")
	require.NoError(t, err)
	assert.Equal(t, RedeemAlreadyUsed, outcome)
}

func TestRedeemExpired(t *testing.T) {
	svc, db := newGraceTokenService(t)

	expired := time.Now().Add(-time.Hour)
	token := &model.GraceToken{
		UserID:      1,
		TokenType:   model.TokenStreakSave,
		GrantedDate: time.Now().AddDate(0, 0, -31),
		Reason:      "old grant",
		ExpiresAt:   &expired,
	}
	require.NoError(t, db.Create(token).Error)

	outcome, err := svc.Redeem(token.ID, "too late")
	require.NoError(t, err)
	assert.Equal(t, RedeemExpired, outcome)

	// 过期只是视图过滤，不改写令牌状态
	var got model.GraceToken
	require.NoError(t, db.First(&got, token.ID).Error)
	assert.False(t, got.IsUsed)
}

func TestRedeemNotFound(t *testing.T) {
	svc, _ := newGraceTokenService(t)

	outcome, err := svc.Redeem(9999, "ghost token")
	require.NoError(t, err)
	assert.Equal(t, RedeemNotFound, outcome)
}

func TestListTokensUnusedOnly(t *testing.T) {
	svc, db := newGraceTokenService(t)

	usable, err := svc.Grant(GrantTokenRequest{
		UserID:    1,
		TokenType: model.TokenQualityAdjustment,
		Reason:    "system outage",
	}, 30)
	require.NoError(t, err)

	used, err := svc.Grant(GrantTokenRequest{
		UserID:    1,
		TokenType: model.TokenQuestRetry,
		Reason:    "quest reward",
	}, 30)
	require.NoError(t, err)
	_, err = svc.Redeem(used.Token.ID, "spent")
	require.NoError(t, err)

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&model.GraceToken{
		UserID:      1,
		TokenType:   model.TokenStreakSave,
		GrantedDate: time.Now().AddDate(0, 0, -31),
		Reason:      "old grant",
		ExpiresAt:   &expired,
	}).Error)

	tokens, err := svc.ListTokens(1, true)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, usable.Token.ID, tokens[0].ID)

	// 全量视图包含已使用与已过期的令牌
	all, err := svc.ListTokens(1, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
