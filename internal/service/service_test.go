package service

import (
	"active_learn_backend/internal/model"
	"active_learn_backend/pkg/database"
	"active_learn_backend/pkg/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

// newTestDB 每个测试独立的内存库。单连接避免 :memory: 在连接池下各见各的库。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: email, Password: "secret", Role: model.Learner}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSession(
	t *testing.T,
	db *gorm.DB,
	userID uint,
	start time.Time,
	activeMinutes int,
	quality model.SessionQuality,
	completed bool,
) *model.LearningSession {
	t.Helper()
	session := &model.LearningSession{
		UserID:         userID,
		SessionStart:   start,
		TotalMinutes:   activeMinutes,
		ActiveMinutes:  activeMinutes,
		SessionQuality: quality,
		IsCompleted:    completed,
	}
	require.NoError(t, db.Create(session).Error)
	return session
}
