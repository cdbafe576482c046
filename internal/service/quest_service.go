package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/util"
	"active_learn_backend/pkg/logger"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuestService struct {
	QuestRepo   *repository.QuestRepository
	SessionRepo *repository.SessionRepository
	TokenRepo   *repository.GraceTokenRepository
}

func NewQuestService(
	questRepo *repository.QuestRepository,
	sessionRepo *repository.SessionRepository,
	tokenRepo *repository.GraceTokenRepository,
) *QuestService {
	return &QuestService{
		QuestRepo:   questRepo,
		SessionRepo: sessionRepo,
		TokenRepo:   tokenRepo,
	}
}

type CreateQuestRequest struct {
	QuestName    string                  `json:"questName" binding:"required"`
	Description  string                  `json:"description"`
	WeekStart    string                  `json:"weekStart" binding:"required"` // YYYY-MM-DD
	WeekEnd      string                  `json:"weekEnd" binding:"required"`   // YYYY-MM-DD
	OrgID        *uint                   `json:"orgId"`
	CohortID     *uint                   `json:"cohortId"`
	Requirements model.QuestRequirements `json:"requirements"`
	Rewards      model.QuestRewards      `json:"rewards"`
}

// CreateQuest 创建每周任务，创建后不再提供修改
func (s *QuestService) CreateQuest(req CreateQuestRequest) (*model.WeeklyQuest, error) {
	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		return nil, fmt.Errorf("invalid weekStart: %w", err)
	}
	weekEnd, err := time.Parse("2006-01-02", req.WeekEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid weekEnd: %w", err)
	}
	if weekEnd.Before(weekStart) {
		return nil, errors.New("weekEnd must not be before weekStart")
	}

	quest := &model.WeeklyQuest{
		QuestName:    req.QuestName,
		Description:  req.Description,
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
		OrgID:        req.OrgID,
		CohortID:     req.CohortID,
		Requirements: req.Requirements,
		Rewards:      req.Rewards,
		IsActive:     true,
	}

	if err := s.QuestRepo.Create(quest); err != nil {
		return nil, err
	}
	return quest, nil
}

func (s *QuestService) GetQuest(questID uint) (*model.WeeklyQuest, error) {
	quest, err := s.QuestRepo.FindByID(questID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestNotFound
		}
		return nil, err
	}
	return quest, nil
}

func (s *QuestService) ListActiveQuests(orgID, cohortID *uint) ([]model.WeeklyQuest, error) {
	return s.QuestRepo.FindActive(time.Now(), orgID, cohortID)
}

func (s *QuestService) GetProgress(userID, questID uint) (*model.QuestCompletion, error) {
	completion, err := s.QuestRepo.FindCompletion(userID, questID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestProgressNotFound
		}
		return nil, err
	}
	return completion, nil
}

// questWindow 任务周窗口 [week_start 00:00:00, week_end 23:59:59]
func questWindow(quest *model.WeeklyQuest) (time.Time, time.Time) {
	ws := quest.WeekStart
	we := quest.WeekEnd
	start := time.Date(ws.Year(), ws.Month(), ws.Day(), 0, 0, 0, 0, ws.Location())
	end := time.Date(we.Year(), we.Month(), we.Day(), 23, 59, 59, 0, we.Location())
	return start, end
}

// dimensionScore 单维度得分 min(1.0, observed/target)。
// 目标为 0 的维度视为自动达成，避免除零。
func dimensionScore(observed, target float64) float64 {
	if target <= 0 {
		return 1.0
	}
	score := observed / target
	if score > 1.0 {
		return 1.0
	}
	return score
}

// ComputeProgress 把用户在任务周窗口内的会话活动换算成进度快照。
// 纯计算、无副作用，同样的会话数据重复计算得到相同结果。
// dp_passes 与 peer_reviews 还不能从会话账本推导，保持为 0，
// 等待评审/提交子系统接入——这是已知限制，不是缺陷。
func (s *QuestService) ComputeProgress(userID uint, quest *model.WeeklyQuest) (model.QuestProgress, error) {
	start, end := questWindow(quest)

	activity, err := s.SessionRepo.GetWeekActivity(userID, start, end)
	if err != nil {
		return model.QuestProgress{}, err
	}

	avgQuality := activity.AvgQualityScore / 3.0 // 1–3 刻度归一化到 0–1
	dpPasses := 0
	peerReviews := 0

	req := quest.Requirements
	scores := []float64{
		dimensionScore(float64(activity.ActiveMinutes), float64(req.ActiveMinutes)),
		dimensionScore(float64(dpPasses), float64(req.DPPasses)),
		dimensionScore(float64(peerReviews), float64(req.PeerReviews)),
		dimensionScore(avgQuality, req.SessionQuality),
		dimensionScore(float64(activity.ConsistencyDays), float64(req.ConsistencyDays)),
	}

	// 五个维度等权平均，不按目标难度加权
	var sum float64
	for _, score := range scores {
		sum += score
	}

	return model.QuestProgress{
		ActiveMinutes:        activity.ActiveMinutes,
		DPPasses:             dpPasses,
		PeerReviews:          peerReviews,
		AvgSessionQuality:    avgQuality,
		ConsistencyDays:      activity.ConsistencyDays,
		CompletionPercentage: sum / float64(len(scores)),
	}, nil
}

// RecordProgress 按 (user_id, quest_id) 落库进度。存在即更新，不存在则插入；
// 并发的首次写入可能都看到"无记录"，唯一约束会让其中一个插入失败，
// 此时按更新重试而不是报错。
func (s *QuestService) RecordProgress(userID, questID uint, progress model.QuestProgress) error {
	_, err := s.QuestRepo.FindCompletion(userID, questID)
	if err == nil {
		return s.QuestRepo.UpdateCompletionProgress(userID, questID, progress)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	completion := &model.QuestCompletion{
		UserID:   userID,
		QuestID:  questID,
		Progress: progress,
	}
	if err := s.QuestRepo.CreateCompletion(completion); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Log.Debug("concurrent first write on quest completion, retrying as update",
				zap.Uint("userId", userID), zap.Uint("questId", questID))
			return s.QuestRepo.UpdateCompletionProgress(userID, questID, progress)
		}
		return err
	}
	return nil
}

// ProgressUpdateResult 进度刷新结果。IsCompleted 只是观察结论，
// 进度记录本身不会被这里标记完成——完成与发奖由领奖操作负责。
type ProgressUpdateResult struct {
	QuestID     uint                `json:"questId"`
	UserID      uint                `json:"userId"`
	Progress    model.QuestProgress `json:"progress"`
	IsCompleted bool                `json:"isCompleted"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// UpdateProgress 重新计算并落库用户在某任务上的进度
func (s *QuestService) UpdateProgress(userID, questID uint) (*ProgressUpdateResult, error) {
	quest, err := s.GetQuest(questID)
	if err != nil {
		return nil, err
	}

	progress, err := s.ComputeProgress(userID, quest)
	if err != nil {
		return nil, err
	}

	if err := s.RecordProgress(userID, questID, progress); err != nil {
		return nil, err
	}

	return &ProgressUpdateResult{
		QuestID:     questID,
		UserID:      userID,
		Progress:    progress,
		IsCompleted: progress.CompletionPercentage >= 1.0,
		UpdatedAt:   time.Now(),
	}, nil
}

// ClaimReward 一次性领取已完成任务的奖励。
// 发奖写入带 reward_claimed = false 守卫，并发领取只有一个调用方胜出，
// 宽限令牌只在胜出路径发放。
func (s *QuestService) ClaimReward(userID, questID uint) (*model.QuestCompletion, error) {
	completion, err := s.GetProgress(userID, questID)
	if err != nil {
		return nil, err
	}

	if completion.Progress.CompletionPercentage < 1.0 {
		return nil, util.ErrQuestNotCompleted
	}
	if completion.RewardClaimed {
		return nil, util.ErrRewardAlreadyClaimed
	}

	quest, err := s.GetQuest(questID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	proof := completion.ProofData
	if proof == nil {
		proof = model.ProofData{}
	}
	proof["claim_id"] = uuid.New().String()
	proof["claimed_at"] = now.Format(time.RFC3339)

	affected, err := s.QuestRepo.MarkRewardClaimed(
		userID, questID, now, quest.Rewards.Points, quest.Rewards.Badges, proof)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, util.ErrRewardAlreadyClaimed
	}

	qid := questID
	for i := 0; i < quest.Rewards.GraceTokens; i++ {
		expiresAt := now.AddDate(0, 0, 30)
		token := &model.GraceToken{
			UserID:      userID,
			TokenType:   model.TokenQuestRetry,
			GrantedDate: now,
			Reason:      fmt.Sprintf("quest reward: %s", quest.QuestName),
			QuestID:     &qid,
			ExpiresAt:   &expiresAt,
		}
		if err := s.TokenRepo.Create(token); err != nil {
			logger.Log.Error("failed to grant quest reward token",
				zap.Uint("userId", userID), zap.Uint("questId", questID), zap.Error(err))
		}
	}

	return s.GetProgress(userID, questID)
}

// CountCompleted 全系统已完成任务数
func (s *QuestService) CountCompleted() (int64, error) {
	return s.QuestRepo.CountCompleted()
}
