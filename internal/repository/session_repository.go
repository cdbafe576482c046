package repository

import (
	"active_learn_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

// NewSessionRepository 创建学习会话仓库实例
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(session *model.LearningSession) error {
	return r.DB.Create(session).Error
}

func (r *SessionRepository) FindByID(sessionID uint) (*model.LearningSession, error) {
	var session model.LearningSession
	err := r.DB.Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateFields 稀疏更新：只写入调用方提供的字段
func (r *SessionRepository) UpdateFields(sessionID uint, updates map[string]interface{}) (int64, error) {
	result := r.DB.Model(&model.LearningSession{}).Where("id = ?", sessionID).Updates(updates)
	return result.RowsAffected, result.Error
}

// FindActiveByUser 获取用户所有未完成的会话，最新开始的排在前面
func (r *SessionRepository) FindActiveByUser(userID uint) ([]model.LearningSession, error) {
	var sessions []model.LearningSession
	err := r.DB.Where("user_id = ? AND is_completed = ?", userID, false).
		Order("session_start DESC").
		Find(&sessions).Error
	return sessions, err
}

const qualityScoreExpr = `AVG(CASE
	WHEN session_quality = 'high' THEN 3.0
	WHEN session_quality = 'medium' THEN 2.0
	WHEN session_quality = 'low' THEN 1.0
END)`

// GetMetrics 聚合 since 之后开始的会话。质量分保持 1–3 原始刻度。
func (r *SessionRepository) GetMetrics(userID uint, since time.Time) (*model.SessionMetrics, error) {
	var m model.SessionMetrics
	err := r.DB.Model(&model.LearningSession{}).
		Select(`COUNT(*) as total_sessions,
			COALESCE(SUM(active_minutes), 0) as total_active_minutes,
			COALESCE(AVG(learning_velocity), 0) as avg_velocity,
			COALESCE(`+qualityScoreExpr+`, 0) as avg_quality_score,
			COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0) as completed_sessions`).
		Where("user_id = ? AND session_start >= ?", userID, since).
		Scan(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetWeekActivity 聚合任务周窗口 [start, end] 内的会话活动
func (r *SessionRepository) GetWeekActivity(userID uint, start, end time.Time) (*model.WeekActivity, error) {
	var a model.WeekActivity
	err := r.DB.Model(&model.LearningSession{}).
		Select(`COALESCE(SUM(active_minutes), 0) as active_minutes,
			COALESCE(`+qualityScoreExpr+`, 0) as avg_quality_score,
			COUNT(DISTINCT DATE(session_start)) as consistency_days,
			COUNT(*) as total_sessions`).
		Where("user_id = ? AND session_start BETWEEN ? AND ?", userID, start, end).
		Scan(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountActive 统计全系统未完成的会话数（管理端统计用）
func (r *SessionRepository) CountActive() (int64, error) {
	var count int64
	err := r.DB.Model(&model.LearningSession{}).Where("is_completed = ?", false).Count(&count).Error
	return count, err
}

// GlobalAvgQuality 全系统平均会话质量，1–3 原始刻度
func (r *SessionRepository) GlobalAvgQuality() (float64, error) {
	var avg float64
	err := r.DB.Model(&model.LearningSession{}).
		Select(`COALESCE(` + qualityScoreExpr + `, 0)`).
		Scan(&avg).Error
	return avg, err
}
