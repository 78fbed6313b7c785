package service

import (
	"context"
	"testing"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 内存 sqlite 测试库
// 限制为单连接：并发用例里多个 goroutine 的事务会在连接上排队，
// 效果等同于 MySQL 对同一行更新的串行化
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Profile{},
		&model.CreditTransaction{},
		&model.Reward{},
		&model.Redemption{},
		&model.OutboxMessage{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				RewardRedeemed: "reward-redeemed-test",
				CreditIssued:   "credit-issued-test",
			},
		},
		Business: config.BusinessConfig{
			LeaderboardSize: 10,
			MaxRetryCount:   3,
		},
	}
}

// seedProfile 创建档案并通过正常发放路径注入积分，保证流水和余额一致
func seedProfile(t *testing.T, db *gorm.DB, cfg *config.Config, userID int64, displayName string, credits int64) *model.Profile {
	t.Helper()

	profileRepo := repository.NewProfileRepository(db)
	profile, err := profileRepo.GetOrCreate(context.Background(), userID, displayName)
	require.NoError(t, err)

	if credits > 0 {
		creditService := NewCreditService(db, cfg)
		_, err = creditService.AddCredits(context.Background(), profile.ID, credits, "seed-event")
		require.NoError(t, err)
	}

	profile, err = profileRepo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return profile
}

func seedReward(t *testing.T, db *gorm.DB, name string, quantity, defaultCost, discountCost int64) *model.Reward {
	t.Helper()

	catalogService := NewCatalogService(db)
	reward, err := catalogService.CreateReward(context.Background(), &CreateRewardRequest{
		Name:         name,
		Description:  name + " 描述",
		ImageURL:     "https://img.example.com/" + name + ".png",
		Quantity:     quantity,
		DefaultCost:  defaultCost,
		DiscountCost: discountCost,
	})
	require.NoError(t, err)
	return reward
}

// requireLedgerMatchesBalance 对账：流水净额必须等于当前余额
func requireLedgerMatchesBalance(t *testing.T, db *gorm.DB, profileID int64) {
	t.Helper()

	profileRepo := repository.NewProfileRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	profile, err := profileRepo.GetByID(context.Background(), nil, profileID)
	require.NoError(t, err)

	sum, err := transactionRepo.SumByProfileID(context.Background(), profileID)
	require.NoError(t, err)

	require.Equal(t, profile.CurrentCredits, sum, "流水净额和当前余额不一致")
	require.GreaterOrEqual(t, profile.CurrentCredits, int64(0))
}

// requireAuditChain 校验流水的审计余额：按落库顺序，每条的期初余额等于
// 上一条的期末余额，金额与前后差一致，链尾等于档案当前余额
func requireAuditChain(t *testing.T, db *gorm.DB, profileID int64) {
	t.Helper()

	var trans []model.CreditTransaction
	require.NoError(t, db.Where("profile_id = ?", profileID).Order("id ASC").Find(&trans).Error)

	var prev int64
	for i, tr := range trans {
		require.Equal(t, prev, tr.BalanceBefore, "第 %d 条流水期初余额断链", i)
		require.Equal(t, tr.BalanceBefore+tr.Amount, tr.BalanceAfter, "第 %d 条流水前后余额与金额不符", i)
		prev = tr.BalanceAfter
	}

	profile, err := repository.NewProfileRepository(db).GetByID(context.Background(), nil, profileID)
	require.NoError(t, err)
	require.Equal(t, profile.CurrentCredits, prev)
}

func getReward(t *testing.T, db *gorm.DB, rewardID int64) *model.Reward {
	t.Helper()

	reward, err := repository.NewRewardRepository(db).GetByID(context.Background(), nil, rewardID)
	require.NoError(t, err)
	return reward
}
