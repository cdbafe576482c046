package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newLeaderboardService(t *testing.T) (*LeaderboardService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewLeaderboardService(repository.NewLeaderboardRepository(db)), db
}

func TestComputeRejectsUnknownBoard(t *testing.T) {
	svc, _ := newLeaderboardService(t)

	_, err := svc.Compute("galaxy", model.PeriodWeekly, nil, 10)
	assert.ErrorIs(t, err, util.ErrInvalidLeaderboard)

	_, err = svc.Compute(model.BoardGlobal, "daily", nil, 10)
	assert.ErrorIs(t, err, util.ErrInvalidLeaderboard)
}

func TestComputeExcludesInactiveUsers(t *testing.T) {
	svc, db := newLeaderboardService(t)

	active := seedUser(t, db, "Alice", "alice@example.com")
	idle := seedUser(t, db, "Bob", "bob@example.com")

	seedSession(t, db, active.ID, time.Now().UTC().Add(-time.Hour), 30, model.QualityMedium, true)

	// 窗口内零活跃分钟的用户即使有任务完成记录也不上榜
	completedAt := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Create(&model.QuestCompletion{
		UserID:      idle.ID,
		QuestID:     1,
		IsCompleted: true,
		CompletedAt: &completedAt,
	}).Error)

	data, err := svc.Compute(model.BoardGlobal, model.PeriodWeekly, nil, 10)
	require.NoError(t, err)

	require.Len(t, data.Entries, 1)
	assert.Equal(t, active.ID, data.Entries[0].UserID)
	assert.Equal(t, 1, data.Entries[0].Rank)
	assert.Equal(t, 1, data.TotalParticipants)
}

func TestComputeOrderingAndNormalization(t *testing.T) {
	svc, db := newLeaderboardService(t)

	alice := seedUser(t, db, "Alice", "alice@example.com")
	bob := seedUser(t, db, "Bob", "bob@example.com")
	carol := seedUser(t, db, "Carol", "carol@example.com")

	now := time.Now().UTC()
	seedSession(t, db, alice.ID, now.Add(-time.Hour), 100, model.QualityMedium, true)
	seedSession(t, db, bob.ID, now.Add(-time.Hour), 200, model.QualityLow, true)
	// 与 Alice 分钟数并列，质量更高的排在前面
	seedSession(t, db, carol.ID, now.Add(-time.Hour), 100, model.QualityHigh, true)

	data, err := svc.Compute(model.BoardGlobal, model.PeriodWeekly, nil, 10)
	require.NoError(t, err)
	require.Len(t, data.Entries, 3)

	assert.Equal(t, bob.ID, data.Entries[0].UserID)
	assert.Equal(t, carol.ID, data.Entries[1].UserID)
	assert.Equal(t, alice.ID, data.Entries[2].UserID)
	for i, entry := range data.Entries {
		assert.Equal(t, i+1, entry.Rank)
	}

	assert.Equal(t, float64(200), data.Entries[0].Score)
	// high=3 归一化到 0–1
	assert.InDelta(t, 1.0, data.Entries[1].SessionQualityAvg, 0.001)
	assert.InDelta(t, 1.0/3.0, data.Entries[0].SessionQualityAvg, 0.001)
}

func TestComputePeriodWindow(t *testing.T) {
	svc, db := newLeaderboardService(t)

	user := seedUser(t, db, "Alice", "alice@example.com")
	// 10 天前的会话：周窗口外，月窗口内
	seedSession(t, db, user.ID, time.Now().UTC().AddDate(0, 0, -10), 60, model.QualityMedium, true)

	weekly, err := svc.Compute(model.BoardGlobal, model.PeriodWeekly, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, weekly.Entries)

	monthly, err := svc.Compute(model.BoardGlobal, model.PeriodMonthly, nil, 10)
	require.NoError(t, err)
	assert.Len(t, monthly.Entries, 1)

	allTime, err := svc.Compute(model.BoardGlobal, model.PeriodAllTime, nil, 10)
	require.NoError(t, err)
	assert.Len(t, allTime.Entries, 1)
}

func TestComputeCohortScope(t *testing.T) {
	svc, db := newLeaderboardService(t)

	member := seedUser(t, db, "Alice", "alice@example.com")
	outsider := seedUser(t, db, "Bob", "bob@example.com")
	mentor := seedUser(t, db, "Eve", "eve@example.com")

	cohortID := uint(5)
	require.NoError(t, db.Create(&model.UserCohort{UserID: member.ID, CohortID: cohortID, Role: "learner"}).Error)
	// 同组但非 learner 角色的成员不参与排名
	require.NoError(t, db.Create(&model.UserCohort{UserID: mentor.ID, CohortID: cohortID, Role: "mentor"}).Error)

	now := time.Now().UTC()
	seedSession(t, db, member.ID, now.Add(-time.Hour), 60, model.QualityMedium, true)
	seedSession(t, db, outsider.ID, now.Add(-time.Hour), 90, model.QualityMedium, true)
	seedSession(t, db, mentor.ID, now.Add(-time.Hour), 120, model.QualityHigh, true)

	data, err := svc.Compute(model.BoardCohort, model.PeriodWeekly, &cohortID, 10)
	require.NoError(t, err)

	require.Len(t, data.Entries, 1)
	assert.Equal(t, member.ID, data.Entries[0].UserID)
}

func TestComputeCourseScope(t *testing.T) {
	svc, db := newLeaderboardService(t)

	enrolled := seedUser(t, db, "Alice", "alice@example.com")
	outsider := seedUser(t, db, "Bob", "bob@example.com")

	courseID := uint(7)
	require.NoError(t, db.Create(&model.CourseEnrollment{UserID: enrolled.ID, CourseID: courseID}).Error)
	// 其他课程的注册不会把用户带进来
	require.NoError(t, db.Create(&model.CourseEnrollment{UserID: outsider.ID, CourseID: courseID + 1}).Error)

	now := time.Now().UTC()
	seedSession(t, db, enrolled.ID, now.Add(-time.Hour), 60, model.QualityMedium, true)
	seedSession(t, db, outsider.ID, now.Add(-time.Hour), 90, model.QualityHigh, true)

	data, err := svc.Compute(model.BoardCourse, model.PeriodWeekly, &courseID, 10)
	require.NoError(t, err)

	require.Len(t, data.Entries, 1)
	assert.Equal(t, enrolled.ID, data.Entries[0].UserID)
}

func TestComputeTopicScope(t *testing.T) {
	svc, db := newLeaderboardService(t)

	onTopic := seedUser(t, db, "Alice", "alice@example.com")
	offTopic := seedUser(t, db, "Bob", "bob@example.com")

	topicID := uint(11)
	otherTopic := topicID + 1
	task := &model.Task{Title: "DP warmup", TopicID: &topicID}
	require.NoError(t, db.Create(task).Error)
	otherTask := &model.Task{Title: "Graph intro", TopicID: &otherTopic}
	require.NoError(t, db.Create(otherTask).Error)

	now := time.Now().UTC()
	onTopicSession := seedSession(t, db, onTopic.ID, now.Add(-time.Hour), 60, model.QualityMedium, true)
	onTopicSession.TaskID = &task.ID
	require.NoError(t, db.Save(onTopicSession).Error)

	// 别的主题上再多的会话也不计入
	offTopicSession := seedSession(t, db, offTopic.ID, now.Add(-time.Hour), 120, model.QualityHigh, true)
	offTopicSession.TaskID = &otherTask.ID
	require.NoError(t, db.Save(offTopicSession).Error)

	data, err := svc.Compute(model.BoardTopic, model.PeriodWeekly, &topicID, 10)
	require.NoError(t, err)

	require.Len(t, data.Entries, 1)
	assert.Equal(t, onTopic.ID, data.Entries[0].UserID)
}

func TestComputeCampusScope(t *testing.T) {
	svc, db := newLeaderboardService(t)

	campusID := uint(3)
	onCampus := &model.User{Name: "Alice", Email: "alice@example.com", Password: "x", CampusID: &campusID}
	require.NoError(t, db.Create(onCampus).Error)
	offCampus := seedUser(t, db, "Bob", "bob@example.com")

	now := time.Now().UTC()
	seedSession(t, db, onCampus.ID, now.Add(-time.Hour), 60, model.QualityMedium, true)
	seedSession(t, db, offCampus.ID, now.Add(-time.Hour), 90, model.QualityMedium, true)

	data, err := svc.Compute(model.BoardCampus, model.PeriodWeekly, &campusID, 10)
	require.NoError(t, err)

	require.Len(t, data.Entries, 1)
	assert.Equal(t, onCampus.ID, data.Entries[0].UserID)
}

func TestCacheRoundTrip(t *testing.T) {
	svc, db := newLeaderboardService(t)

	user := seedUser(t, db, "Alice", "alice@example.com")
	seedSession(t, db, user.ID, time.Now().UTC().Add(-time.Hour), 60, model.QualityMedium, true)

	data, err := svc.Compute(model.BoardGlobal, model.PeriodWeekly, nil, 10)
	require.NoError(t, err)

	_, err = svc.Store(data, 1)
	require.NoError(t, err)

	cached, err := svc.ReadThroughCache(model.BoardGlobal, model.PeriodWeekly, nil)
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Len(t, cached.Entries, 1)
	assert.Equal(t, user.ID, cached.Entries[0].UserID)

	// 过期后同一行变为未命中
	require.NoError(t, db.Model(&model.LeaderboardCache{}).
		Where("leaderboard_type = ?", model.BoardGlobal).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	cached, err = svc.ReadThroughCache(model.BoardGlobal, model.PeriodWeekly, nil)
	require.NoError(t, err)
	assert.Nil(t, cached)

	assert.InDelta(t, 0.5, svc.CacheHitRate(), 0.001)
}

func TestStoreUpsertsSameKey(t *testing.T) {
	svc, db := newLeaderboardService(t)

	data, err := svc.Compute(model.BoardGlobal, model.PeriodWeekly, nil, 10)
	require.NoError(t, err)

	firstID, err := svc.Store(data, 1)
	require.NoError(t, err)
	secondID, err := svc.Store(data, 2)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.LeaderboardCache{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 替换路径返回的仍是同一行的 ID
	var row model.LeaderboardCache
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, row.ID, firstID)
	assert.Equal(t, row.ID, secondID)
}

func TestGetComputesThenHitsCache(t *testing.T) {
	svc, db := newLeaderboardService(t)

	user := seedUser(t, db, "Alice", "alice@example.com")
	seedSession(t, db, user.ID, time.Now().UTC().Add(-time.Hour), 60, model.QualityMedium, true)

	result, err := svc.Get(model.BoardGlobal, model.PeriodWeekly, nil, 10, &user.ID, 1)
	require.NoError(t, err)
	require.Len(t, result.Leaderboard.Entries, 1)
	require.NotNil(t, result.UserRank)
	assert.Equal(t, 1, *result.UserRank)
	require.NotNil(t, result.UserEntry)
	assert.Equal(t, user.ID, result.UserEntry.UserID)

	// 缓存生效后，窗口内新增的会话暂时不反映在榜上
	seedSession(t, db, user.ID, time.Now().UTC().Add(-time.Minute), 999, model.QualityHigh, true)

	again, err := svc.Get(model.BoardGlobal, model.PeriodWeekly, nil, 10, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 60, again.Leaderboard.Entries[0].ActiveMinutes)
	assert.Nil(t, again.UserRank)
}

func TestRefreshAllCoversEveryBoard(t *testing.T) {
	svc, db := newLeaderboardService(t)

	refreshed, err := svc.RefreshAll(10, 2)
	require.NoError(t, err)
	assert.Equal(t, 15, refreshed)

	var count int64
	require.NoError(t, db.Model(&model.LeaderboardCache{}).Count(&count).Error)
	assert.Equal(t, int64(15), count)
}
