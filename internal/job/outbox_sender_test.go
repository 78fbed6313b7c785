package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.OutboxMessage{}))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			MaxRetryCount:    3,
			OutboxIntervalMs: 50,
			OutboxBatchSize:  10,
		},
	}
}

func seedMessage(t *testing.T, db *gorm.DB, key string) *model.OutboxMessage {
	t.Helper()

	msg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      "reward-redeemed-test",
		Payload:    fmt.Sprintf(`{"redemption_no":"%s"}`, key),
		Status:     model.OutboxStatusPending,
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

// 轮询间隔和批大小取自配置，缺省时回落到默认值
func TestOutboxSenderConfig(t *testing.T) {
	db := newTestDB(t)

	sender := NewOutboxSender(db, newTestConfig())
	require.Equal(t, 50*time.Millisecond, sender.interval)
	require.Equal(t, 10, sender.batchSize)

	sender = NewOutboxSender(db, &config.Config{})
	require.Equal(t, defaultOutboxInterval, sender.interval)
	require.Equal(t, defaultOutboxBatchSize, sender.batchSize)
}

func TestOutboxSenderDeliversPending(t *testing.T) {
	db := newTestDB(t)
	seedMessage(t, db, "RDM-1")
	seedMessage(t, db, "RDM-2")

	sender := NewOutboxSender(db, newTestConfig())
	var sentKeys []string
	sender.send = func(topic, key, value string) error {
		sentKeys = append(sentKeys, key)
		return nil
	}

	sender.processPendingMessages(context.Background())
	require.Equal(t, []string{"RDM-1", "RDM-2"}, sentKeys)

	var count int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).
		Where("status = ?", model.OutboxStatusSent).Count(&count).Error)
	require.Equal(t, int64(2), count)

	// 已投递的事件不会重复投递
	sender.processPendingMessages(context.Background())
	require.Len(t, sentKeys, 2)
}

// 单轮投递条数不超过配置的批大小，剩余事件留到下一轮
func TestOutboxSenderBatchSize(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 3; i++ {
		seedMessage(t, db, fmt.Sprintf("RDM-%d", i))
	}

	cfg := newTestConfig()
	cfg.Business.OutboxBatchSize = 2
	sender := NewOutboxSender(db, cfg)
	sent := 0
	sender.send = func(topic, key, value string) error {
		sent++
		return nil
	}

	sender.processPendingMessages(context.Background())
	require.Equal(t, 2, sent)

	sender.processPendingMessages(context.Background())
	require.Equal(t, 3, sent)
}

// 投递失败累加重试次数，超过最大重试次数后标记为 FAILED 不再投递
func TestOutboxSenderMarksFailedAfterMaxRetries(t *testing.T) {
	db := newTestDB(t)
	msg := seedMessage(t, db, "RDM-BROKEN")

	cfg := newTestConfig()
	cfg.Business.MaxRetryCount = 2
	sender := NewOutboxSender(db, cfg)
	attempts := 0
	sender.send = func(topic, key, value string) error {
		attempts++
		return errors.New("broker不可达")
	}

	sender.processPendingMessages(context.Background())
	var reloaded model.OutboxMessage
	require.NoError(t, db.First(&reloaded, msg.ID).Error)
	require.Equal(t, model.OutboxStatusPending, reloaded.Status)
	require.Equal(t, 1, reloaded.RetryCount)

	sender.processPendingMessages(context.Background())
	require.NoError(t, db.First(&reloaded, msg.ID).Error)
	require.Equal(t, model.OutboxStatusFailed, reloaded.Status)
	require.GreaterOrEqual(t, reloaded.RetryCount, cfg.Business.MaxRetryCount)

	// FAILED 的事件不再参与投递
	sender.processPendingMessages(context.Background())
	require.Equal(t, 2, attempts)
}
