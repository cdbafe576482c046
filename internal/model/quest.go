package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// QuestRequirements 每周任务的五个独立目标维度。
// 每个维度贡献 1/5 的完成度，单维度得分上限 1.0，目标为 0 的维度自动满分。
type QuestRequirements struct {
	ActiveMinutes   int     `json:"active_minutes"`
	DPPasses        int     `json:"dp_passes"`
	PeerReviews     int     `json:"peer_reviews"`
	SessionQuality  float64 `json:"session_quality"` // 0–1 归一化的最低平均质量
	ConsistencyDays int     `json:"consistency_days"`
}

func (r QuestRequirements) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *QuestRequirements) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// QuestRewards 任务奖励，由显式的领取操作一次性发放
type QuestRewards struct {
	Points           int      `json:"points"`
	Badges           []string `json:"badges"`
	GraceTokens      int      `json:"grace_tokens"`
	LeaderboardBoost float64  `json:"leaderboard_boost"`
}

func (r QuestRewards) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *QuestRewards) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// WeeklyQuest 周窗口内的多维度挑战，创建后不可修改
// swagger:model WeeklyQuest
type WeeklyQuest struct {
	ID           uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestName    string            `gorm:"size:255;not null" json:"questName"`
	Description  string            `gorm:"type:text" json:"description"`
	WeekStart    time.Time         `gorm:"not null" json:"weekStart"`
	WeekEnd      time.Time         `gorm:"not null" json:"weekEnd"`
	OrgID        *uint             `gorm:"index" json:"orgId"`    // 为空表示全部组织可见
	CohortID     *uint             `gorm:"index" json:"cohortId"` // 为空表示全部同期组可见
	Requirements QuestRequirements `gorm:"type:json" json:"requirements"`
	Rewards      QuestRewards      `gorm:"type:json" json:"rewards"`
	IsActive     bool              `gorm:"default:true" json:"isActive"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func (WeeklyQuest) TableName() string {
	return "weekly_quests"
}

// QuestProgress 纯计算的进度快照，只随 QuestCompletion 持久化
type QuestProgress struct {
	ActiveMinutes        int     `json:"active_minutes"`
	DPPasses             int     `json:"dp_passes"`
	PeerReviews          int     `json:"peer_reviews"`
	AvgSessionQuality    float64 `json:"avg_session_quality"` // 0–1
	ConsistencyDays      int     `json:"consistency_days"`
	CompletionPercentage float64 `json:"completion_percentage"` // 0–1
}

func (p QuestProgress) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *QuestProgress) Scan(value interface{}) error {
	return scanJSON(value, p)
}

// StringList 持久化为JSON数组的字符串序列
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// ProofData 开放的佐证数据
type ProofData map[string]interface{}

func (d ProofData) Value() (driver.Value, error) {
	if d == nil {
		d = ProofData{}
	}
	return json.Marshal(d)
}

func (d *ProofData) Scan(value interface{}) error {
	return scanJSON(value, d)
}

// QuestCompletion 每个 (user_id, quest_id) 唯一一行，首次计算进度时惰性创建，
// 之后原地更新。RewardClaimed 保证奖励只发放一次。
// swagger:model QuestCompletion
type QuestCompletion struct {
	ID            uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint          `gorm:"uniqueIndex:idx_user_quest;type:bigint unsigned;not null" json:"userId"`
	QuestID       uint          `gorm:"uniqueIndex:idx_user_quest;type:bigint unsigned;not null" json:"questId"`
	Progress      QuestProgress `gorm:"type:json" json:"progress"`
	IsCompleted   bool          `gorm:"default:false" json:"isCompleted"`
	CompletedAt   *time.Time    `json:"completedAt"`
	RewardClaimed bool          `gorm:"default:false" json:"rewardClaimed"`
	PointsEarned  int           `gorm:"default:0" json:"pointsEarned"`
	BadgesEarned  StringList    `gorm:"type:json" json:"badgesEarned"`
	ProofData     ProofData     `gorm:"type:json" json:"proofData"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (QuestCompletion) TableName() string {
	return "quest_completions"
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported json column type")
	}
}
