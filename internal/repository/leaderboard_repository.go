package repository

import (
	"active_learn_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaderboardRepository struct {
	DB *gorm.DB
}

// NewLeaderboardRepository 创建排行榜仓库实例
func NewLeaderboardRepository(db *gorm.DB) *LeaderboardRepository {
	return &LeaderboardRepository{DB: db}
}

// EntryRow 聚合查询的原始行，质量分为 1–3 刻度，由服务层归一化
type EntryRow struct {
	UserID          uint    `json:"userId"`
	UserName        string  `json:"userName"`
	UserEmail       string  `json:"userEmail"`
	ActiveMinutes   int     `json:"activeMinutes"`
	QualityScore    float64 `json:"qualityScore"`
	QuestsCompleted int     `json:"questsCompleted"`
}

// scopeFilterFunc 把候选用户集合限制到某个范围的成员
type scopeFilterFunc func(db *gorm.DB, query *gorm.DB, scopeID uint) *gorm.DB

// scopeFilters 每种排行榜类型一个范围成员关系变体。
// global 无过滤；其余类型把 users 限制到对应的成员关系。
var scopeFilters = map[model.LeaderboardType]scopeFilterFunc{
	model.BoardGlobal: func(db, query *gorm.DB, scopeID uint) *gorm.DB {
		return query
	},
	model.BoardCohort: func(db, query *gorm.DB, scopeID uint) *gorm.DB {
		members := db.Table("user_cohorts").Select("user_id").
			Where("cohort_id = ? AND role = ?", scopeID, "learner")
		return query.Where("u.id IN (?)", members)
	},
	model.BoardCourse: func(db, query *gorm.DB, scopeID uint) *gorm.DB {
		members := db.Table("course_enrollments").Select("user_id").
			Where("course_id = ?", scopeID)
		return query.Where("u.id IN (?)", members)
	},
	model.BoardCampus: func(db, query *gorm.DB, scopeID uint) *gorm.DB {
		return query.Where("u.campus_id = ?", scopeID)
	},
	model.BoardTopic: func(db, query *gorm.DB, scopeID uint) *gorm.DB {
		// 在该主题的任务上有过会话的用户
		members := db.Table("learning_sessions s").
			Select("DISTINCT s.user_id").
			Joins("JOIN tasks t ON t.id = s.task_id").
			Where("t.topic_id = ?", scopeID)
		return query.Where("u.id IN (?)", members)
	},
}

// ComputeEntries 聚合窗口内的会话与任务完成情况。
// 无活跃分钟的用户被 HAVING 过滤排除；排序键为活跃分钟、再按质量分，
// 残余并列按用户ID保持稳定顺序。
func (r *LeaderboardRepository) ComputeEntries(
	boardType model.LeaderboardType,
	since time.Time,
	scopeID *uint,
	limit int,
) ([]EntryRow, error) {
	query := r.DB.Table("users u").
		Select(`u.id as user_id,
			u.name as user_name,
			u.email as user_email,
			COALESCE(SUM(ls.active_minutes), 0) as active_minutes,
			COALESCE(AVG(CASE
				WHEN ls.session_quality = 'high' THEN 3.0
				WHEN ls.session_quality = 'medium' THEN 2.0
				WHEN ls.session_quality = 'low' THEN 1.0
				ELSE 2.0
			END), 0) as quality_score,
			COUNT(DISTINCT qc.id) as quests_completed`).
		Joins("LEFT JOIN learning_sessions ls ON ls.user_id = u.id AND ls.session_start >= ?", since).
		Joins("LEFT JOIN quest_completions qc ON qc.user_id = u.id AND qc.is_completed = ? AND qc.completed_at >= ?", true, since).
		Where("u.deleted_at IS NULL").
		Group("u.id, u.name, u.email").
		Having("COALESCE(SUM(ls.active_minutes), 0) > 0").
		Order("active_minutes DESC, quality_score DESC, user_id ASC").
		Limit(limit)

	if filter, ok := scopeFilters[boardType]; ok && scopeID != nil {
		query = filter(r.DB, query, *scopeID)
	}

	var rows []EntryRow
	err := query.Scan(&rows).Error
	return rows, err
}

// FindCache 按键取缓存行，expires_at 是有效性的唯一依据
func (r *LeaderboardRepository) FindCache(
	boardType model.LeaderboardType,
	period model.TimePeriod,
	scopeKey uint,
	now time.Time,
) (*model.LeaderboardCache, error) {
	var cache model.LeaderboardCache
	err := r.DB.Where(
		"leaderboard_type = ? AND time_period = ? AND scope_id = ? AND expires_at > ?",
		boardType, period, scopeKey, now,
	).First(&cache).Error
	if err != nil {
		return nil, err
	}
	return &cache, nil
}

// UpsertCache 按唯一键三元组插入或替换快照。
// 冲突更新路径上驱动回填的主键不可靠，落库后按键读回行 ID。
func (r *LeaderboardRepository) UpsertCache(cache *model.LeaderboardCache) error {
	err := r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "leaderboard_type"},
			{Name: "scope_id"},
			{Name: "time_period"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"data", "last_updated", "expires_at"}),
	}).Create(cache).Error
	if err != nil {
		return err
	}

	var row model.LeaderboardCache
	err = r.DB.Select("id").
		Where("leaderboard_type = ? AND scope_id = ? AND time_period = ?",
			cache.LeaderboardType, cache.ScopeID, cache.TimePeriod).
		First(&row).Error
	if err != nil {
		return err
	}
	cache.ID = row.ID
	return nil
}
