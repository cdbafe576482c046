package model

import (
	"time"
)

// GraceTokenType 宽限令牌类型
type GraceTokenType string

const (
	TokenSessionExtension  GraceTokenType = "session_extension"
	TokenQuestRetry        GraceTokenType = "quest_retry"
	TokenStreakSave        GraceTokenType = "streak_save"
	TokenQualityAdjustment GraceTokenType = "quality_adjustment"
)

// GraceToken 单次使用、限时的例外凭证。
// 从未使用到已使用只能转换一次；过期不落库，由 expires_at 派生判断。
// swagger:model GraceToken
type GraceToken struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint           `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	TokenType   GraceTokenType `gorm:"size:30;not null" json:"tokenType"`
	GrantedDate time.Time      `gorm:"not null" json:"grantedDate"`
	UsedDate    *time.Time     `json:"usedDate"`
	Reason      string         `gorm:"type:text;not null" json:"reason"`
	UsedReason  string         `gorm:"type:text" json:"usedReason"` // 兑换时提交的用途说明
	QuestID     *uint          `gorm:"index" json:"questId"`
	SessionID   *uint          `gorm:"index" json:"sessionId"`
	IsUsed      bool           `gorm:"default:false" json:"isUsed"`
	ExpiresAt   *time.Time     `json:"expiresAt"`
}

func (GraceToken) TableName() string {
	return "grace_tokens"
}

// Expired 判断令牌在给定时间点是否已失效
func (t *GraceToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
