package repository

import (
	"active_learn_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type QuestRepository struct {
	DB *gorm.DB
}

// NewQuestRepository 创建每周任务仓库实例
func NewQuestRepository(db *gorm.DB) *QuestRepository {
	return &QuestRepository{DB: db}
}

func (r *QuestRepository) Create(quest *model.WeeklyQuest) error {
	return r.DB.Create(quest).Error
}

func (r *QuestRepository) FindByID(questID uint) (*model.WeeklyQuest, error) {
	var quest model.WeeklyQuest
	err := r.DB.Where("id = ?", questID).First(&quest).Error
	if err != nil {
		return nil, err
	}
	return &quest, nil
}

// FindActive 获取当周生效的任务。org/cohort 为空的任务对所有范围可见。
func (r *QuestRepository) FindActive(today time.Time, orgID, cohortID *uint) ([]model.WeeklyQuest, error) {
	query := r.DB.Where("is_active = ? AND ? BETWEEN week_start AND week_end", true, today)

	if orgID != nil {
		query = query.Where("org_id = ? OR org_id IS NULL", *orgID)
	}
	if cohortID != nil {
		query = query.Where("cohort_id = ? OR cohort_id IS NULL", *cohortID)
	}

	var quests []model.WeeklyQuest
	err := query.Order("created_at DESC").Find(&quests).Error
	return quests, err
}

func (r *QuestRepository) FindCompletion(userID, questID uint) (*model.QuestCompletion, error) {
	var completion model.QuestCompletion
	err := r.DB.Where("user_id = ? AND quest_id = ?", userID, questID).First(&completion).Error
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

func (r *QuestRepository) CreateCompletion(completion *model.QuestCompletion) error {
	return r.DB.Create(completion).Error
}

// UpdateCompletionProgress 按 (user_id, quest_id) 原地更新进度快照
func (r *QuestRepository) UpdateCompletionProgress(userID, questID uint, progress model.QuestProgress) error {
	return r.DB.Model(&model.QuestCompletion{}).
		Where("user_id = ? AND quest_id = ?", userID, questID).
		Update("progress", progress).Error
}

// MarkRewardClaimed 一次性发奖写入。带 reward_claimed = false 守卫，
// 并发领取同一任务时只有一个写入者生效，返回受影响行数。
func (r *QuestRepository) MarkRewardClaimed(
	userID, questID uint,
	now time.Time,
	points int,
	badges model.StringList,
	proof model.ProofData,
) (int64, error) {
	result := r.DB.Model(&model.QuestCompletion{}).
		Where("user_id = ? AND quest_id = ? AND reward_claimed = ?", userID, questID, false).
		Updates(map[string]interface{}{
			"reward_claimed": true,
			"is_completed":   true,
			"completed_at":   now,
			"points_earned":  points,
			"badges_earned":  badges,
			"proof_data":     proof,
		})
	return result.RowsAffected, result.Error
}

// FindCompletionsByUser 获取用户在给定任务集合上的进度记录
func (r *QuestRepository) FindCompletionsByUser(userID uint, questIDs []uint) ([]model.QuestCompletion, error) {
	if len(questIDs) == 0 {
		return nil, nil
	}
	var completions []model.QuestCompletion
	err := r.DB.Where("user_id = ? AND quest_id IN ?", userID, questIDs).Find(&completions).Error
	return completions, err
}

// CountCompleted 统计全系统已完成的任务数（管理端统计用）
func (r *QuestRepository) CountCompleted() (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuestCompletion{}).Where("is_completed = ?", true).Count(&count).Error
	return count, err
}
