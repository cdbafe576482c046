package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/util"
	"active_learn_backend/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileService 汇总用户的游戏化档案：30天指标、进行中的任务、可用令牌、
// 最近会话，以及建议与下一里程碑。结果在 Redis 里做短时缓存。
type ProfileService struct {
	UserRepo     *repository.UserRepository
	SessionSvc   *SessionService
	QuestSvc     *QuestService
	TokenSvc     *GraceTokenService
	Redis        *redis.Client
	CacheSeconds int
}

func NewProfileService(
	userRepo *repository.UserRepository,
	sessionSvc *SessionService,
	questSvc *QuestService,
	tokenSvc *GraceTokenService,
	rdb *redis.Client,
	cacheSeconds int,
) *ProfileService {
	if cacheSeconds <= 0 {
		cacheSeconds = 60
	}
	return &ProfileService{
		UserRepo:     userRepo,
		SessionSvc:   sessionSvc,
		QuestSvc:     questSvc,
		TokenSvc:     tokenSvc,
		Redis:        rdb,
		CacheSeconds: cacheSeconds,
	}
}

// ActiveLearningMetrics 档案里的活跃学习指标汇总
type ActiveLearningMetrics struct {
	TotalActiveMinutes   int                 `json:"totalActiveMinutes"`
	AvgSessionQuality    float64             `json:"avgSessionQuality"` // 1–3 原始刻度
	TotalSessions        int64               `json:"totalSessions"`
	CompletedQuests      int                 `json:"completedQuests"`
	GraceTokensUsed      int                 `json:"graceTokensUsed"`
	GraceTokensAvailable int                 `json:"graceTokensAvailable"`
	WeeklyProgress       model.QuestProgress `json:"weeklyProgress"`
}

// GamificationProfile 用户游戏化档案
type GamificationProfile struct {
	UserID          uint                    `json:"userId"`
	UserName        string                  `json:"userName"`
	TotalPoints     int                     `json:"totalPoints"`
	BadgesEarned    []string                `json:"badgesEarned"`
	Metrics         ActiveLearningMetrics   `json:"metrics"`
	CurrentQuests   []model.QuestCompletion `json:"currentQuests"`
	GraceTokens     []model.GraceToken      `json:"graceTokens"`
	RecentSessions  []model.LearningSession `json:"recentSessions"`
	Recommendations []string                `json:"recommendations"`
	NextMilestones  map[string]string       `json:"nextMilestones"`
}

func profileCacheKey(userID uint) string {
	return fmt.Sprintf("gamification:profile:%d", userID)
}

// GetProfile 组装档案，命中 Redis 缓存时直接返回
func (s *ProfileService) GetProfile(ctx context.Context, userID uint) (*GamificationProfile, error) {
	key := profileCacheKey(userID)
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var profile GamificationProfile
			if err := json.Unmarshal([]byte(cached), &profile); err == nil {
				return &profile, nil
			}
		}
	}

	profile, err := s.buildProfile(userID)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(profile); err == nil {
			if err := s.Redis.Set(ctx, key, payload, time.Duration(s.CacheSeconds)*time.Second).Err(); err != nil {
				logger.Log.Warn("profile cache write failed", zap.Uint("userId", userID), zap.Error(err))
			}
		}
	}

	return profile, nil
}

func (s *ProfileService) buildProfile(userID uint) (*GamificationProfile, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	metrics, err := s.SessionSvc.GetSessionMetrics(userID, 30)
	if err != nil {
		return nil, err
	}

	activeQuests, err := s.QuestSvc.ListActiveQuests(nil, nil)
	if err != nil {
		return nil, err
	}

	questIDs := make([]uint, len(activeQuests))
	for i, quest := range activeQuests {
		questIDs[i] = quest.ID
	}
	currentQuests, err := s.QuestSvc.QuestRepo.FindCompletionsByUser(userID, questIDs)
	if err != nil {
		return nil, err
	}

	allTokens, err := s.TokenSvc.ListTokens(userID, false)
	if err != nil {
		return nil, err
	}
	availableTokens, err := s.TokenSvc.ListTokens(userID, true)
	if err != nil {
		return nil, err
	}

	recentSessions, err := s.SessionSvc.ListActiveSessions(userID)
	if err != nil {
		return nil, err
	}
	if len(recentSessions) > 5 {
		recentSessions = recentSessions[:5]
	}

	totalPoints := 0
	badges := []string{}
	completedQuests := 0
	usedTokens := 0
	var weeklyProgress model.QuestProgress

	for _, completion := range currentQuests {
		totalPoints += completion.PointsEarned
		badges = append(badges, completion.BadgesEarned...)
		if completion.IsCompleted {
			completedQuests++
		}
	}
	if len(currentQuests) > 0 {
		weeklyProgress = currentQuests[0].Progress
	}
	for _, token := range allTokens {
		if token.IsUsed {
			usedTokens++
		}
	}

	profile := &GamificationProfile{
		UserID:       userID,
		UserName:     user.Name,
		TotalPoints:  totalPoints,
		BadgesEarned: badges,
		Metrics: ActiveLearningMetrics{
			TotalActiveMinutes:   metrics.TotalActiveMinutes,
			AvgSessionQuality:    metrics.AvgQualityScore,
			TotalSessions:        metrics.TotalSessions,
			CompletedQuests:      completedQuests,
			GraceTokensUsed:      usedTokens,
			GraceTokensAvailable: len(availableTokens),
			WeeklyProgress:       weeklyProgress,
		},
		CurrentQuests:  currentQuests,
		GraceTokens:    availableTokens,
		RecentSessions: recentSessions,
		NextMilestones: map[string]string{},
	}

	profile.Recommendations = buildRecommendations(metrics, len(currentQuests))
	if len(currentQuests) > 0 {
		profile.NextMilestones["next_quest_completion"] =
			fmt.Sprintf("%.1f%%", currentQuests[0].Progress.CompletionPercentage*100)
	}

	return profile, nil
}

func buildRecommendations(metrics *model.SessionMetrics, questCount int) []string {
	recommendations := []string{}
	if metrics.TotalActiveMinutes < 60 {
		recommendations = append(recommendations, "Aim for at least 60 active learning minutes this week")
	}
	if metrics.AvgQualityScore < 2.0 {
		recommendations = append(recommendations, "Focus on deeper engagement to improve session quality")
	}
	if questCount == 0 {
		recommendations = append(recommendations, "Join this week's quest to earn rewards and compete!")
	}
	return recommendations
}
