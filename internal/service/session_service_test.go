package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(t *testing.T) (*SessionService, *repository.SessionRepository) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewSessionRepository(db)
	return NewSessionService(repo), repo
}

func TestStartSessionDefaults(t *testing.T) {
	svc, _ := newSessionService(t)

	taskID := uint(7)
	session, err := svc.StartSession(StartSessionRequest{UserID: 1, TaskID: &taskID})
	require.NoError(t, err)

	assert.NotZero(t, session.ID)
	assert.Equal(t, model.QualityMedium, session.SessionQuality)
	assert.False(t, session.IsCompleted)
	assert.Zero(t, session.ActiveMinutes)
	assert.WithinDuration(t, time.Now(), session.SessionStart, 5*time.Second)
}

func TestUpdateSessionNoFields(t *testing.T) {
	svc, _ := newSessionService(t)

	session, err := svc.StartSession(StartSessionRequest{UserID: 1})
	require.NoError(t, err)

	updated, err := svc.UpdateSession(session.ID, UpdateSessionRequest{})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestUpdateSessionNotFound(t *testing.T) {
	svc, _ := newSessionService(t)

	_, err := svc.UpdateSession(9999, UpdateSessionRequest{})
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestUpdateSessionSparseFields(t *testing.T) {
	svc, _ := newSessionService(t)

	session, err := svc.StartSession(StartSessionRequest{UserID: 1})
	require.NoError(t, err)

	active := 42
	velocity := 1.5
	updated, err := svc.UpdateSession(session.ID, UpdateSessionRequest{
		ActiveMinutes:    &active,
		LearningVelocity: &velocity,
	})
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.ActiveMinutes)
	assert.Equal(t, 1.5, got.LearningVelocity)
	// 未提供的字段保持原值
	assert.Equal(t, model.QualityMedium, got.SessionQuality)
	assert.Zero(t, got.TotalMinutes)
}

func TestUpdateSessionCompletedRejected(t *testing.T) {
	svc, _ := newSessionService(t)

	session, err := svc.StartSession(StartSessionRequest{UserID: 1})
	require.NoError(t, err)

	done := true
	updated, err := svc.UpdateSession(session.ID, UpdateSessionRequest{IsCompleted: &done})
	require.NoError(t, err)
	assert.True(t, updated)

	minutes := 10
	_, err = svc.UpdateSession(session.ID, UpdateSessionRequest{ActiveMinutes: &minutes})
	assert.ErrorIs(t, err, util.ErrSessionCompleted)

	// 被拒绝的写入不落库
	got, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ActiveMinutes)
}

func TestListActiveSessionsOrdering(t *testing.T) {
	svc, repo := newSessionService(t)

	now := time.Now().UTC()
	older := seedSession(t, repo.DB, 1, now.Add(-2*time.Hour), 10, model.QualityMedium, false)
	newer := seedSession(t, repo.DB, 1, now.Add(-time.Hour), 10, model.QualityMedium, false)
	seedSession(t, repo.DB, 1, now, 10, model.QualityHigh, true)  // 已完成，不在列表中
	seedSession(t, repo.DB, 2, now, 10, model.QualityHigh, false) // 其他用户

	sessions, err := svc.ListActiveSessions(1)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID)
	assert.Equal(t, older.ID, sessions[1].ID)
}

func TestSessionMetricsQualityScale(t *testing.T) {
	svc, repo := newSessionService(t)

	now := time.Now().UTC()
	seedSession(t, repo.DB, 1, now.Add(-time.Hour), 30, model.QualityHigh, true)
	seedSession(t, repo.DB, 1, now.Add(-2*time.Hour), 20, model.QualityMedium, false)
	seedSession(t, repo.DB, 1, now.Add(-3*time.Hour), 10, model.QualityLow, true)
	// 窗口之外的会话不参与聚合
	seedSession(t, repo.DB, 1, now.AddDate(0, 0, -30), 999, model.QualityHigh, true)

	metrics, err := svc.GetSessionMetrics(1, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(3), metrics.TotalSessions)
	assert.Equal(t, 60, metrics.TotalActiveMinutes)
	assert.Equal(t, int64(2), metrics.CompletedSessions)
	// high=3 medium=2 low=1，保持 1–3 原始刻度
	assert.InDelta(t, 2.0, metrics.AvgQualityScore, 0.001)
}

func TestValidateSessionHighEngagement(t *testing.T) {
	svc, _ := newSessionService(t)

	session, err := svc.StartSession(StartSessionRequest{UserID: 1})
	require.NoError(t, err)

	total := 60
	_, err = svc.UpdateSession(session.ID, UpdateSessionRequest{TotalMinutes: &total})
	require.NoError(t, err)

	validation, err := svc.ValidateSession(session.ID, []model.InteractionQuality{
		{InteractionType: "answer", EngagementScore: 0.9, ResponseTimeSeconds: 12},
		{InteractionType: "answer", EngagementScore: 0.7, ResponseTimeSeconds: 8},
	})
	require.NoError(t, err)

	assert.True(t, validation.IsValid)
	assert.InDelta(t, 0.8, validation.QualityScore, 0.001)
	assert.Equal(t, 48, validation.RecommendedActiveMinutes)

	got, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QualityHigh, got.SessionQuality)
	assert.Equal(t, 48, got.ActiveMinutes)
}

func TestValidateSessionSuspiciousMajority(t *testing.T) {
	svc, _ := newSessionService(t)

	session, err := svc.StartSession(StartSessionRequest{UserID: 1})
	require.NoError(t, err)

	total := 60
	_, err = svc.UpdateSession(session.ID, UpdateSessionRequest{TotalMinutes: &total})
	require.NoError(t, err)

	validation, err := svc.ValidateSession(session.ID, []model.InteractionQuality{
		{InteractionType: "answer", EngagementScore: 0.5, ResponseTimeSeconds: 5, SuspiciousPatterns: []string{"copy_paste"}},
		{InteractionType: "answer", EngagementScore: 0.5, ResponseTimeSeconds: 5, SuspiciousPatterns: []string{"copy_paste"}},
		{InteractionType: "answer", EngagementScore: 0.5, ResponseTimeSeconds: 5},
	})
	require.NoError(t, err)

	assert.False(t, validation.IsValid)
	assert.Contains(t, validation.Flags, "suspicious_pattern_majority")
	assert.Zero(t, validation.RecommendedActiveMinutes)
}

func TestValidateSessionNoSamples(t *testing.T) {
	svc, _ := newSessionService(t)

	session, err := svc.StartSession(StartSessionRequest{UserID: 1})
	require.NoError(t, err)

	validation, err := svc.ValidateSession(session.ID, nil)
	require.NoError(t, err)

	assert.False(t, validation.IsValid)
	assert.Contains(t, validation.Flags, "no_interaction_samples")
}
