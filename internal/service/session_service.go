package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
)

type SessionService struct {
	SessionRepo *repository.SessionRepository
}

func NewSessionService(sessionRepo *repository.SessionRepository) *SessionService {
	return &SessionService{SessionRepo: sessionRepo}
}

type StartSessionRequest struct {
	UserID     uint  `json:"userId" binding:"required"`
	TaskID     *uint `json:"taskId"`
	QuestionID *uint `json:"questionId"`
}

// UpdateSessionRequest 稀疏更新：为 nil 的字段保持原值
type UpdateSessionRequest struct {
	SessionEnd        *time.Time            `json:"sessionEnd"`
	TotalMinutes      *int                  `json:"totalMinutes"`
	ActiveMinutes     *int                  `json:"activeMinutes"`
	InteractionsCount *int                  `json:"interactionsCount"`
	LearningVelocity  *float64              `json:"learningVelocity"`
	SessionQuality    *model.SessionQuality `json:"sessionQuality"`
	IsCompleted       *bool                 `json:"isCompleted"`
}

func (r *UpdateSessionRequest) toUpdates() map[string]interface{} {
	updates := map[string]interface{}{}
	if r.SessionEnd != nil {
		updates["session_end"] = *r.SessionEnd
	}
	if r.TotalMinutes != nil {
		updates["total_minutes"] = *r.TotalMinutes
	}
	if r.ActiveMinutes != nil {
		updates["active_minutes"] = *r.ActiveMinutes
	}
	if r.InteractionsCount != nil {
		updates["interactions_count"] = *r.InteractionsCount
	}
	if r.LearningVelocity != nil {
		updates["learning_velocity"] = *r.LearningVelocity
	}
	if r.SessionQuality != nil {
		updates["session_quality"] = *r.SessionQuality
	}
	if r.IsCompleted != nil {
		updates["is_completed"] = *r.IsCompleted
	}
	return updates
}

// StartSession 开始一次新的学习会话，总是成功
func (s *SessionService) StartSession(req StartSessionRequest) (*model.LearningSession, error) {
	session := &model.LearningSession{
		UserID:         req.UserID,
		TaskID:         req.TaskID,
		QuestionID:     req.QuestionID,
		SessionStart:   time.Now(),
		SessionQuality: model.QualityMedium,
	}

	if err := s.SessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession 更新会话。没有提供任何字段时返回 false（非错误）；
// 已完成的会话是只读历史，在这里的写入边界直接拒绝。
func (s *SessionService) UpdateSession(sessionID uint, req UpdateSessionRequest) (bool, error) {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, util.ErrSessionNotFound
		}
		return false, err
	}

	if session.IsCompleted {
		return false, util.ErrSessionCompleted
	}

	updates := req.toUpdates()
	if len(updates) == 0 {
		return false, nil
	}

	if _, err := s.SessionRepo.UpdateFields(sessionID, updates); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionService) GetSession(sessionID uint) (*model.LearningSession, error) {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) ListActiveSessions(userID uint) ([]model.LearningSession, error) {
	return s.SessionRepo.FindActiveByUser(userID)
}

// GetSessionMetrics 最近 windowDays 天的聚合指标，质量分为 1–3 原始刻度
func (s *SessionService) GetSessionMetrics(userID uint, windowDays int) (*model.SessionMetrics, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().AddDate(0, 0, -windowDays)
	return s.SessionRepo.GetMetrics(userID, since)
}

// 质量评定阈值：平均参与度 >=0.7 判为 high，>=0.4 判为 medium，其余 low
const (
	highEngagementThreshold   = 0.7
	mediumEngagementThreshold = 0.4
)

// ValidateSession 根据交互采样评定会话质量并写回会话。
// 采集在客户端完成，这里只负责评分、打标和落库。
func (s *SessionService) ValidateSession(sessionID uint, samples []model.InteractionQuality) (*model.SessionValidation, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	validation := &model.SessionValidation{
		SessionID: sessionID,
		IsValid:   true,
		Flags:     []string{},
	}

	if len(samples) == 0 {
		validation.IsValid = false
		validation.Flags = append(validation.Flags, "no_interaction_samples")
		validation.RecommendedActiveMinutes = 0
		return validation, nil
	}

	var engagementSum float64
	suspicious := 0
	for _, sample := range samples {
		engagementSum += sample.EngagementScore
		if len(sample.SuspiciousPatterns) > 0 {
			suspicious++
		}
		if sample.ResponseTimeSeconds < 1.0 && sample.InteractionType != "navigation" {
			validation.Flags = append(validation.Flags, "implausibly_fast_response")
		}
	}

	validation.QualityScore = engagementSum / float64(len(samples))
	if suspicious > len(samples)/2 {
		validation.IsValid = false
		validation.Flags = append(validation.Flags, "suspicious_pattern_majority")
	}

	quality := model.QualityLow
	switch {
	case validation.QualityScore >= highEngagementThreshold:
		quality = model.QualityHigh
	case validation.QualityScore >= mediumEngagementThreshold:
		quality = model.QualityMedium
	}

	// 活跃分钟按参与度折算，上限为已记录的总分钟数
	recommended := int(float64(session.TotalMinutes) * validation.QualityScore)
	if !validation.IsValid {
		recommended = 0
	}
	validation.RecommendedActiveMinutes = recommended

	if _, err := s.UpdateSession(sessionID, UpdateSessionRequest{
		SessionQuality: &quality,
		ActiveMinutes:  &recommended,
	}); err != nil {
		return nil, err
	}

	return validation, nil
}
