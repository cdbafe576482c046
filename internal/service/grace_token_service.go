package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"errors"
	"time"

	"gorm.io/gorm"
)

type GraceTokenService struct {
	TokenRepo *repository.GraceTokenRepository
}

func NewGraceTokenService(tokenRepo *repository.GraceTokenRepository) *GraceTokenService {
	return &GraceTokenService{TokenRepo: tokenRepo}
}

type GrantTokenRequest struct {
	UserID    uint                 `json:"userId" binding:"required"`
	TokenType model.GraceTokenType `json:"tokenType" binding:"required"`
	Reason    string               `json:"reason" binding:"required"`
	QuestID   *uint                `json:"questId"`
	SessionID *uint                `json:"sessionId"`
	TTLDays   int                  `json:"ttlDays"`
}

// GrantResult 授予结果，附带该用户当前可用的令牌数
type GrantResult struct {
	Token           *model.GraceToken `json:"token"`
	RemainingTokens int64             `json:"remainingTokens"`
}

// Grant 授予宽限令牌。不做配额限制，配额策略由上层决定。
func (s *GraceTokenService) Grant(req GrantTokenRequest, defaultTTLDays int) (*GrantResult, error) {
	ttlDays := req.TTLDays
	if ttlDays <= 0 {
		ttlDays = defaultTTLDays
	}

	now := time.Now()
	expiresAt := now.AddDate(0, 0, ttlDays)
	token := &model.GraceToken{
		UserID:      req.UserID,
		TokenType:   req.TokenType,
		GrantedDate: now,
		Reason:      req.Reason,
		QuestID:     req.QuestID,
		SessionID:   req.SessionID,
		ExpiresAt:   &expiresAt,
	}

	if err := s.TokenRepo.Create(token); err != nil {
		return nil, err
	}

	remaining, err := s.TokenRepo.CountUsable(req.UserID, now)
	if err != nil {
		return nil, err
	}

	return &GrantResult{Token: token, RemainingTokens: remaining}, nil
}

func (s *GraceTokenService) ListTokens(userID uint, unusedOnly bool) ([]model.GraceToken, error) {
	return s.TokenRepo.FindByUser(userID, unusedOnly, time.Now())
}

// RedeemOutcome 兑换结果，调用方据此区分失败原因
type RedeemOutcome string

const (
	RedeemOK          RedeemOutcome = "ok"
	RedeemNotFound    RedeemOutcome = "not_found"
	RedeemAlreadyUsed RedeemOutcome = "already_used"
	RedeemExpired     RedeemOutcome = "expired"
)

// Redeem 兑换令牌：未使用→已使用的单向转换。
// 带守卫条件的更新保证并发兑换只有一个成功。
func (s *GraceTokenService) Redeem(tokenID uint, usageReason string) (RedeemOutcome, error) {
	now := time.Now()

	token, err := s.TokenRepo.FindByID(tokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RedeemNotFound, nil
		}
		return "", err
	}

	if token.IsUsed {
		return RedeemAlreadyUsed, nil
	}
	if token.Expired(now) {
		return RedeemExpired, nil
	}

	affected, err := s.TokenRepo.MarkUsed(tokenID, now, usageReason)
	if err != nil {
		return "", err
	}
	if affected == 0 {
		// 并发兑换输掉了竞争
		return RedeemAlreadyUsed, nil
	}
	return RedeemOK, nil
}

// CountGranted 全系统累计授予数
func (s *GraceTokenService) CountGranted() (int64, error) {
	return s.TokenRepo.CountGranted()
}
