package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/util"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newQuestService(t *testing.T) (*QuestService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewQuestService(
		repository.NewQuestRepository(db),
		repository.NewSessionRepository(db),
		repository.NewGraceTokenRepository(db),
	)
	return svc, db
}

// seedQuest 当前时间落在周窗口内的任务
func seedQuest(t *testing.T, svc *QuestService, req model.QuestRequirements, rewards model.QuestRewards) *model.WeeklyQuest {
	t.Helper()
	now := time.Now().UTC()
	quest, err := svc.CreateQuest(CreateQuestRequest{
		QuestName:    "weekly grind",
		WeekStart:    now.AddDate(0, 0, -3).Format("2006-01-02"),
		WeekEnd:      now.AddDate(0, 0, 3).Format("2006-01-02"),
		Requirements: req,
		Rewards:      rewards,
	})
	require.NoError(t, err)
	return quest
}

func TestCreateQuestRejectsInvertedWindow(t *testing.T) {
	svc, _ := newQuestService(t)

	_, err := svc.CreateQuest(CreateQuestRequest{
		QuestName: "backwards",
		WeekStart: "2026-08-10",
		WeekEnd:   "2026-08-03",
	})
	assert.Error(t, err)
}

func TestListActiveQuestsWindowAndScope(t *testing.T) {
	svc, _ := newQuestService(t)

	current := seedQuest(t, svc, model.QuestRequirements{}, model.QuestRewards{})

	// 已结束的任务不出现在进行中列表
	past := time.Now().UTC().AddDate(0, 0, -30)
	_, err := svc.CreateQuest(CreateQuestRequest{
		QuestName: "last month",
		WeekStart: past.Format("2006-01-02"),
		WeekEnd:   past.AddDate(0, 0, 6).Format("2006-01-02"),
	})
	require.NoError(t, err)

	quests, err := svc.ListActiveQuests(nil, nil)
	require.NoError(t, err)
	require.Len(t, quests, 1)
	assert.Equal(t, current.ID, quests[0].ID)

	// 范围过滤：无归属的任务对任何同期组可见
	cohortID := uint(42)
	quests, err = svc.ListActiveQuests(nil, &cohortID)
	require.NoError(t, err)
	assert.Len(t, quests, 1)
}

func TestComputeProgressZeroTargets(t *testing.T) {
	svc, _ := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{}, model.QuestRewards{})

	// 没有任何会话，但所有目标都是 0，视为自动达成
	progress, err := svc.ComputeProgress(1, quest)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, progress.CompletionPercentage, 0.001)
}

func TestComputeProgressEndToEnd(t *testing.T) {
	svc, db := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{
		ActiveMinutes:   120,
		SessionQuality:  0.8,
		ConsistencyDays: 5,
	}, model.QuestRewards{})

	// 窗口内 5 个不同日历天的高质量会话，合计 130 active 分钟
	base := quest.WeekStart.Add(2 * time.Hour)
	minutes := []int{30, 30, 30, 20, 20}
	for day, m := range minutes {
		seedSession(t, db, 1, base.AddDate(0, 0, day), m, model.QualityHigh, true)
	}

	progress, err := svc.ComputeProgress(1, quest)
	require.NoError(t, err)

	assert.Equal(t, 130, progress.ActiveMinutes)
	assert.Equal(t, 5, progress.ConsistencyDays)
	assert.InDelta(t, 1.0, progress.AvgSessionQuality, 0.001) // high=3 归一化后 1.0
	assert.InDelta(t, 1.0, progress.CompletionPercentage, 0.001)
}

func TestComputeProgressIdempotent(t *testing.T) {
	svc, db := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{ActiveMinutes: 100}, model.QuestRewards{})
	seedSession(t, db, 1, quest.WeekStart.Add(3*time.Hour), 50, model.QualityMedium, true)

	first, err := svc.ComputeProgress(1, quest)
	require.NoError(t, err)
	second, err := svc.ComputeProgress(1, quest)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeProgressPartialDimension(t *testing.T) {
	svc, db := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{ActiveMinutes: 100}, model.QuestRewards{})
	seedSession(t, db, 1, quest.WeekStart.Add(3*time.Hour), 50, model.QualityMedium, true)

	progress, err := svc.ComputeProgress(1, quest)
	require.NoError(t, err)

	// active 维度 50/100=0.5，其余四个维度目标为 0 自动满分
	assert.InDelta(t, (0.5+4.0)/5.0, progress.CompletionPercentage, 0.001)
}

func TestUpdateProgressSingleRow(t *testing.T) {
	svc, db := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{ActiveMinutes: 100}, model.QuestRewards{})
	seedSession(t, db, 1, quest.WeekStart.Add(3*time.Hour), 40, model.QualityMedium, true)

	for i := 0; i < 3; i++ {
		_, err := svc.UpdateProgress(1, quest.ID)
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&model.QuestCompletion{}).
		Where("user_id = ? AND quest_id = ?", 1, quest.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	completion, err := svc.GetProgress(1, quest.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, completion.Progress.ActiveMinutes)
	assert.False(t, completion.IsCompleted) // 刷新进度不会标记完成
}

func TestUpdateProgressQuestNotFound(t *testing.T) {
	svc, _ := newQuestService(t)

	_, err := svc.UpdateProgress(1, 9999)
	assert.ErrorIs(t, err, util.ErrQuestNotFound)
}

func TestGetProgressNotFound(t *testing.T) {
	svc, _ := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{}, model.QuestRewards{})

	_, err := svc.GetProgress(1, quest.ID)
	assert.ErrorIs(t, err, util.ErrQuestProgressNotFound)
}

func TestClaimRewardFullFlow(t *testing.T) {
	svc, db := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{ActiveMinutes: 60}, model.QuestRewards{
		Points:      100,
		Badges:      []string{"grinder"},
		GraceTokens: 2,
	})
	seedSession(t, db, 1, quest.WeekStart.Add(3*time.Hour), 90, model.QualityHigh, true)

	result, err := svc.UpdateProgress(1, quest.ID)
	require.NoError(t, err)
	require.True(t, result.IsCompleted)

	completion, err := svc.ClaimReward(1, quest.ID)
	require.NoError(t, err)

	assert.True(t, completion.RewardClaimed)
	assert.True(t, completion.IsCompleted)
	assert.NotNil(t, completion.CompletedAt)
	assert.Equal(t, 100, completion.PointsEarned)
	assert.Equal(t, model.StringList{"grinder"}, completion.BadgesEarned)
	assert.NotEmpty(t, completion.ProofData["claim_id"])

	// 奖励附带的宽限令牌已发放
	var tokens []model.GraceToken
	require.NoError(t, db.Where("user_id = ?", 1).Find(&tokens).Error)
	require.Len(t, tokens, 2)
	for _, token := range tokens {
		assert.Equal(t, model.TokenQuestRetry, token.TokenType)
		require.NotNil(t, token.QuestID)
		assert.Equal(t, quest.ID, *token.QuestID)
	}

	// 重复领取被拒绝，且不会重复发令牌
	_, err = svc.ClaimReward(1, quest.ID)
	assert.ErrorIs(t, err, util.ErrRewardAlreadyClaimed)

	var count int64
	require.NoError(t, db.Model(&model.GraceToken{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

// 并发领取同一任务时，只能有一个调用方拿到奖励，令牌也只发一份。
func TestClaimRewardConcurrentSingleWinner(t *testing.T) {
	svc, db := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{ActiveMinutes: 60}, model.QuestRewards{
		Points:      100,
		GraceTokens: 2,
	})
	seedSession(t, db, 1, quest.WeekStart.Add(3*time.Hour), 90, model.QualityHigh, true)

	result, err := svc.UpdateProgress(1, quest.ID)
	require.NoError(t, err)
	require.True(t, result.IsCompleted)

	const claimers = 4
	start := make(chan struct{})
	errs := make([]error, claimers)

	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.ClaimReward(1, quest.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, errors.Is(err, util.ErrRewardAlreadyClaimed), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, winners)

	var count int64
	require.NoError(t, db.Model(&model.GraceToken{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestClaimRewardIncomplete(t *testing.T) {
	svc, db := newQuestService(t)

	quest := seedQuest(t, svc, model.QuestRequirements{ActiveMinutes: 1000}, model.QuestRewards{Points: 10})
	seedSession(t, db, 1, quest.WeekStart.Add(3*time.Hour), 30, model.QualityMedium, true)

	_, err := svc.UpdateProgress(1, quest.ID)
	require.NoError(t, err)

	_, err = svc.ClaimReward(1, quest.ID)
	assert.ErrorIs(t, err, util.ErrQuestNotCompleted)
}
