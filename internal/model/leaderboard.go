package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// LeaderboardType 排行榜的人群范围
type LeaderboardType string

const (
	BoardCourse LeaderboardType = "course"
	BoardCohort LeaderboardType = "cohort"
	BoardTopic  LeaderboardType = "topic"
	BoardCampus LeaderboardType = "campus"
	BoardGlobal LeaderboardType = "global"
)

// LeaderboardTypes 全部范围，按管理员刷新遍历的顺序
var LeaderboardTypes = []LeaderboardType{BoardCourse, BoardCohort, BoardTopic, BoardCampus, BoardGlobal}

func (t LeaderboardType) Valid() bool {
	switch t {
	case BoardCourse, BoardCohort, BoardTopic, BoardCampus, BoardGlobal:
		return true
	}
	return false
}

// TimePeriod 排行榜时间窗口
type TimePeriod string

const (
	PeriodWeekly  TimePeriod = "weekly"
	PeriodMonthly TimePeriod = "monthly"
	PeriodAllTime TimePeriod = "all_time"
)

var TimePeriods = []TimePeriod{PeriodWeekly, PeriodMonthly, PeriodAllTime}

func (p TimePeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// LeaderboardEntry 排行榜单行，rank 从 1 起密集编号
type LeaderboardEntry struct {
	UserID            uint     `json:"user_id"`
	UserName          string   `json:"user_name"`
	UserEmail         string   `json:"user_email"`
	Score             float64  `json:"score"`
	Rank              int      `json:"rank"`
	ActiveMinutes     int      `json:"active_minutes"`
	QuestsCompleted   int      `json:"quests_completed"`
	StreakCount       int      `json:"streak_count"`
	SessionQualityAvg float64  `json:"session_quality_avg"` // 0–1
	Badges            []string `json:"badges"`
}

// LeaderboardData 计算得到的带范围元数据的排名视图。
// TotalParticipants 统计的是返回的条目数，不是满足活跃过滤的总人数。
type LeaderboardData struct {
	LeaderboardType   LeaderboardType        `json:"leaderboard_type"`
	ScopeID           *uint                  `json:"scope_id"`
	TimePeriod        TimePeriod             `json:"time_period"`
	Entries           []LeaderboardEntry     `json:"entries"`
	LastUpdated       time.Time              `json:"last_updated"`
	TotalParticipants int                    `json:"total_participants"`
	Metadata          map[string]interface{} `json:"metadata"`
}

func (d LeaderboardData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *LeaderboardData) Scan(value interface{}) error {
	return scanJSON(value, d)
}

// LeaderboardCache 按 (类型, 范围, 周期) 唯一键存储的排名快照。
// scope_id 为 0 表示无范围；读取有效性只看 expires_at。
type LeaderboardCache struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	LeaderboardType LeaderboardType `gorm:"size:20;uniqueIndex:idx_board_key;not null" json:"leaderboardType"`
	ScopeID         uint            `gorm:"uniqueIndex:idx_board_key;default:0" json:"scopeId"`
	TimePeriod      TimePeriod      `gorm:"size:20;uniqueIndex:idx_board_key;not null" json:"timePeriod"`
	Data            LeaderboardData `gorm:"type:json" json:"data"`
	LastUpdated     time.Time       `gorm:"not null" json:"lastUpdated"`
	ExpiresAt       time.Time       `gorm:"not null;index" json:"expiresAt"`
}

func (LeaderboardCache) TableName() string {
	return "leaderboard_cache"
}
