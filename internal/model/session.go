package model

import (
	"time"
)

// SessionQuality 学习会话的三级质量分类
type SessionQuality string

const (
	QualityHigh   SessionQuality = "high"
	QualityMedium SessionQuality = "medium"
	QualityLow    SessionQuality = "low"
)

// LearningSession 一次计时的学习会话。
// is_completed 置为 true 后会话进入只读历史，更新会在写入边界被拒绝。
// swagger:model LearningSession
type LearningSession struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            uint           `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	TaskID            *uint          `gorm:"index" json:"taskId"`
	QuestionID        *uint          `json:"questionId"`
	SessionStart      time.Time      `gorm:"not null;index" json:"sessionStart"`
	SessionEnd        *time.Time     `json:"sessionEnd"`
	TotalMinutes      int            `gorm:"default:0" json:"totalMinutes"`
	ActiveMinutes     int            `gorm:"default:0" json:"activeMinutes"` // 真实投入的分钟数，<= TotalMinutes
	InteractionsCount int            `gorm:"default:0" json:"interactionsCount"`
	LearningVelocity  float64        `gorm:"default:0" json:"learningVelocity"` // 每活跃分钟的交互次数
	SessionQuality    SessionQuality `gorm:"size:10;default:'medium'" json:"sessionQuality"`
	IsCompleted       bool           `gorm:"default:false" json:"isCompleted"`
	CreatedAt         time.Time      `json:"createdAt"`
}

func (LearningSession) TableName() string {
	return "learning_sessions"
}

// SessionMetrics 最近 N 天的会话聚合指标。
// AvgQualityScore 为 1.0–3.0 原始刻度（high=3 medium=2 low=1），
// 需要 0–1 刻度的调用方自行除以 3.0——任务引擎与排行榜都依赖这一约定。
type SessionMetrics struct {
	TotalSessions      int64   `json:"totalSessions"`
	TotalActiveMinutes int     `json:"totalActiveMinutes"`
	AvgVelocity        float64 `json:"avgVelocity"`
	AvgQualityScore    float64 `json:"avgQualityScore"`
	CompletedSessions  int64   `json:"completedSessions"`
}

// WeekActivity 任务周窗口内的会话聚合，任务进度引擎的输入
type WeekActivity struct {
	ActiveMinutes   int     `json:"activeMinutes"`
	AvgQualityScore float64 `json:"avgQualityScore"` // 1–3 原始刻度
	ConsistencyDays int     `json:"consistencyDays"` // 有会话开始的去重日历天数
	TotalSessions   int64   `json:"totalSessions"`
}
