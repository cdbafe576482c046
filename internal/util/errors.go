package util

import "errors"

var (
	ErrUserNotFound          = errors.New("用户不存在")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionCompleted      = errors.New("session already completed")
	ErrQuestNotFound         = errors.New("quest not found")
	ErrQuestProgressNotFound = errors.New("quest progress not found")
	ErrQuestNotCompleted     = errors.New("quest not completed yet")
	ErrRewardAlreadyClaimed  = errors.New("reward already claimed")
	ErrInvalidLeaderboard    = errors.New("invalid leaderboard type or period")
	ErrPermissionDenied      = errors.New("permission denied")
)
