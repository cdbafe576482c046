package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/util"
	"active_learn_backend/pkg/logger"
	"active_learn_backend/pkg/monitoring"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LeaderboardService struct {
	BoardRepo *repository.LeaderboardRepository

	// 管理端统计用的进程内命中计数，prometheus 侧同步累加
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

func NewLeaderboardService(boardRepo *repository.LeaderboardRepository) *LeaderboardService {
	return &LeaderboardService{BoardRepo: boardRepo}
}

// periodStart 时间窗口起点：weekly 最近7天，monthly 最近30天，all_time 不限
func periodStart(period model.TimePeriod, now time.Time) time.Time {
	switch period {
	case model.PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case model.PeriodMonthly:
		return now.AddDate(0, 0, -30)
	default:
		return time.Unix(0, 0)
	}
}

// scopeKey 缓存键中的范围值，无范围记 0
func scopeKey(scopeID *uint) uint {
	if scopeID == nil {
		return 0
	}
	return *scopeID
}

// Compute 计算排行榜。窗口内无活跃分钟的用户完全不出现；
// 名次在排序后的最终顺序上从 1 起密集编号。
func (s *LeaderboardService) Compute(
	boardType model.LeaderboardType,
	period model.TimePeriod,
	scopeID *uint,
	limit int,
) (*model.LeaderboardData, error) {
	if !boardType.Valid() || !period.Valid() {
		return nil, util.ErrInvalidLeaderboard
	}
	if limit <= 0 {
		limit = 100
	}

	now := time.Now()
	since := periodStart(period, now)

	rows, err := s.BoardRepo.ComputeEntries(boardType, since, scopeID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = model.LeaderboardEntry{
			UserID:            row.UserID,
			UserName:          row.UserName,
			UserEmail:         row.UserEmail,
			Score:             float64(row.ActiveMinutes), // 活跃分钟是主评分
			Rank:              i + 1,
			ActiveMinutes:     row.ActiveMinutes,
			QuestsCompleted:   row.QuestsCompleted,
			StreakCount:       0,
			SessionQualityAvg: row.QualityScore / 3.0, // 归一化到 0–1
			Badges:            []string{},
		}
	}

	return &model.LeaderboardData{
		LeaderboardType:   boardType,
		ScopeID:           scopeID,
		TimePeriod:        period,
		Entries:           entries,
		LastUpdated:       now,
		TotalParticipants: len(entries), // 返回集合的条目数，非满足过滤的总人数
		Metadata:          map[string]interface{}{},
	}, nil
}

// ReadThroughCache 读取缓存。expires_at 是有效性的唯一依据，过期或缺失都算未命中。
func (s *LeaderboardService) ReadThroughCache(
	boardType model.LeaderboardType,
	period model.TimePeriod,
	scopeID *uint,
) (*model.LeaderboardData, error) {
	cache, err := s.BoardRepo.FindCache(boardType, period, scopeKey(scopeID), time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.cacheMisses.Add(1)
			monitoring.LeaderboardCacheMisses.Inc()
			return nil, nil
		}
		return nil, err
	}

	s.cacheHits.Add(1)
	monitoring.LeaderboardCacheHits.Inc()
	data := cache.Data
	return &data, nil
}

// Store 按唯一键三元组插入或替换快照。并发写同一键时后写者胜出，
// 对相同输入两边产出等价数据，所以不需要互斥。
func (s *LeaderboardService) Store(data *model.LeaderboardData, ttlHours int) (uint, error) {
	if ttlHours <= 0 {
		ttlHours = 1
	}

	now := time.Now()
	cache := &model.LeaderboardCache{
		LeaderboardType: data.LeaderboardType,
		ScopeID:         scopeKey(data.ScopeID),
		TimePeriod:      data.TimePeriod,
		Data:            *data,
		LastUpdated:     now,
		ExpiresAt:       now.Add(time.Duration(ttlHours) * time.Hour),
	}

	if err := s.BoardRepo.UpsertCache(cache); err != nil {
		return 0, err
	}
	return cache.ID, nil
}

// LeaderboardResult 排行榜响应，可选地标注请求用户自己的名次
type LeaderboardResult struct {
	Leaderboard *model.LeaderboardData  `json:"leaderboard"`
	UserRank    *int                    `json:"userRank,omitempty"`
	UserEntry   *model.LeaderboardEntry `json:"userEntry,omitempty"`
}

// Get 先查缓存，未命中则计算并以 ttlHours 回填
func (s *LeaderboardService) Get(
	boardType model.LeaderboardType,
	period model.TimePeriod,
	scopeID *uint,
	limit int,
	highlightUserID *uint,
	ttlHours int,
) (*LeaderboardResult, error) {
	data, err := s.ReadThroughCache(boardType, period, scopeID)
	if err != nil {
		return nil, err
	}

	if data == nil {
		data, err = s.Compute(boardType, period, scopeID, limit)
		if err != nil {
			return nil, err
		}
		if _, err := s.Store(data, ttlHours); err != nil {
			return nil, err
		}
	}

	result := &LeaderboardResult{Leaderboard: data}
	if highlightUserID != nil {
		for i := range data.Entries {
			if data.Entries[i].UserID == *highlightUserID {
				rank := data.Entries[i].Rank
				result.UserRank = &rank
				result.UserEntry = &data.Entries[i]
				break
			}
		}
	}
	return result, nil
}

// RefreshAll 管理端批量刷新：遍历 5 种类型 × 3 个周期共 15 个无范围键，
// 无条件重算并回填。按操作触发，不是自驱动的循环。
func (s *LeaderboardService) RefreshAll(limit, ttlHours int) (int, error) {
	refreshed := 0
	for _, boardType := range model.LeaderboardTypes {
		for _, period := range model.TimePeriods {
			data, err := s.Compute(boardType, period, nil, limit)
			if err != nil {
				logger.Log.Error("leaderboard refresh failed",
					zap.String("type", string(boardType)),
					zap.String("period", string(period)),
					zap.Error(err))
				return refreshed, err
			}
			if _, err := s.Store(data, ttlHours); err != nil {
				return refreshed, err
			}
			refreshed++
		}
	}
	return refreshed, nil
}

// CacheHitRate 进程启动以来的缓存命中率
func (s *LeaderboardService) CacheHitRate() float64 {
	hits := s.cacheHits.Load()
	total := hits + s.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
