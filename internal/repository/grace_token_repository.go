package repository

import (
	"active_learn_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type GraceTokenRepository struct {
	DB *gorm.DB
}

// NewGraceTokenRepository 创建宽限令牌仓库实例
func NewGraceTokenRepository(db *gorm.DB) *GraceTokenRepository {
	return &GraceTokenRepository{DB: db}
}

func (r *GraceTokenRepository) Create(token *model.GraceToken) error {
	return r.DB.Create(token).Error
}

func (r *GraceTokenRepository) FindByID(tokenID uint) (*model.GraceToken, error) {
	var token model.GraceToken
	err := r.DB.Where("id = ?", tokenID).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// FindByUser 获取用户的令牌，最新授予的排在前面。
// unusedOnly 时排除已使用和已过期的令牌（过期只是视图过滤，不改写状态）。
func (r *GraceTokenRepository) FindByUser(userID uint, unusedOnly bool, now time.Time) ([]model.GraceToken, error) {
	query := r.DB.Where("user_id = ?", userID)
	if unusedOnly {
		query = query.Where("is_used = ? AND (expires_at IS NULL OR expires_at > ?)", false, now)
	}

	var tokens []model.GraceToken
	err := query.Order("granted_date DESC").Find(&tokens).Error
	return tokens, err
}

// MarkUsed 把令牌标记为已使用。带 is_used = false 守卫，
// 并发兑换同一令牌时只有一个写入者生效，返回受影响行数。
func (r *GraceTokenRepository) MarkUsed(tokenID uint, now time.Time, usedReason string) (int64, error) {
	result := r.DB.Model(&model.GraceToken{}).
		Where("id = ? AND is_used = ?", tokenID, false).
		Updates(map[string]interface{}{
			"is_used":     true,
			"used_date":   now,
			"used_reason": usedReason,
		})
	return result.RowsAffected, result.Error
}

// CountUsable 用户当前可用的令牌数
func (r *GraceTokenRepository) CountUsable(userID uint, now time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.GraceToken{}).
		Where("user_id = ? AND is_used = ? AND (expires_at IS NULL OR expires_at > ?)", userID, false, now).
		Count(&count).Error
	return count, err
}

// CountGranted 全系统累计授予的令牌数（管理端统计用）
func (r *GraceTokenRepository) CountGranted() (int64, error) {
	var count int64
	err := r.DB.Model(&model.GraceToken{}).Count(&count).Error
	return count, err
}
