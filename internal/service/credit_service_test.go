package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestAddCredits(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()

	profile := seedProfile(t, db, cfg, 3001, "新人", 0)

	svc := NewCreditService(db, cfg)
	balance, err := svc.AddCredits(context.Background(), profile.ID, 80, "event-signup")
	require.NoError(t, err)
	require.Equal(t, int64(80), balance)

	// 当前积分和累计积分同步增加
	updated, err := svc.profileRepo.GetByID(context.Background(), nil, profile.ID)
	require.NoError(t, err)
	require.Equal(t, int64(80), updated.CurrentCredits)
	require.Equal(t, int64(80), updated.EarnedCredits)

	// 发放流水关联来源事件
	var trans model.CreditTransaction
	require.NoError(t, db.Where("profile_id = ?", profile.ID).First(&trans).Error)
	require.Equal(t, int64(80), trans.Amount)
	require.Equal(t, "event-signup", trans.EventID)
	require.Equal(t, model.TransactionTypeIssue, trans.Type)

	requireLedgerMatchesBalance(t, db, profile.ID)
}

func TestAddCreditsInvalidAmount(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()

	profile := seedProfile(t, db, cfg, 3002, "新人", 0)
	svc := NewCreditService(db, cfg)

	for _, amount := range []int64{0, -5} {
		_, err := svc.AddCredits(context.Background(), profile.ID, amount, "event-bad")
		require.ErrorIs(t, err, ErrInvalidAmount)
	}

	// 没有任何流水落库
	var count int64
	require.NoError(t, db.Model(&model.CreditTransaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAddCreditsProfileNotFound(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()

	svc := NewCreditService(db, cfg)
	_, err := svc.AddCredits(context.Background(), 99999, 10, "event-missing")
	require.ErrorIs(t, err, repository.ErrProfileNotFound)

	var count int64
	require.NoError(t, db.Model(&model.CreditTransaction{}).Count(&count).Error)
	require.Zero(t, count)
}

// 多次发放累计：累计积分只增不减，兑换后也不回退
func TestEarnedCreditsMonotonic(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()

	profile := seedProfile(t, db, cfg, 3003, "活跃用户", 0)
	svc := NewCreditService(db, cfg)

	_, err := svc.AddCredits(context.Background(), profile.ID, 100, "event-1")
	require.NoError(t, err)
	balance, err := svc.AddCredits(context.Background(), profile.ID, 50, "event-2")
	require.NoError(t, err)
	require.Equal(t, int64(150), balance)

	reward := seedReward(t, db, "小奖品", 10, 30, 0)
	redeemSvc := NewRedeemService(db, nil, cfg)
	result, err := redeemSvc.Redeem(context.Background(), &RedeemRequest{
		RequestID: "req-monotonic-1",
		RewardID:  reward.ID,
		ProfileID: profile.ID,
		Quantity:  1,
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	updated, err := svc.profileRepo.GetByID(context.Background(), nil, profile.ID)
	require.NoError(t, err)
	require.Equal(t, int64(120), updated.CurrentCredits)
	require.Equal(t, int64(150), updated.EarnedCredits)

	requireLedgerMatchesBalance(t, db, profile.ID)
}

// 并发给同一档案发放：审计余额回读更新后的行，
// 所有流水的期初/期末连成一条不重复的链，不会出现两条流水记同一个期初余额
func TestAddCreditsConcurrentAuditBalances(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()

	profile := seedProfile(t, db, cfg, 3005, "并发发放", 0)
	svc := NewCreditService(db, cfg)

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddCredits(context.Background(), profile.ID, 10, fmt.Sprintf("event-audit-%d", i))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	requireAuditChain(t, db, profile.ID)

	// 期初余额两两不同
	var befores []int64
	require.NoError(t, db.Model(&model.CreditTransaction{}).Where("profile_id = ?", profile.ID).
		Order("balance_before ASC").Pluck("balance_before", &befores).Error)
	require.Len(t, befores, n)
	for i := 1; i < len(befores); i++ {
		require.NotEqual(t, befores[i-1], befores[i])
	}

	requireLedgerMatchesBalance(t, db, profile.ID)
}

// 发放成功时发件箱里有待投递的发放事件
func TestAddCreditsWritesOutboxMessage(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()

	profile := seedProfile(t, db, cfg, 3004, "新人", 0)

	svc := NewCreditService(db, cfg)
	_, err := svc.AddCredits(context.Background(), profile.ID, 42, "event-outbox")
	require.NoError(t, err)

	var messages []model.OutboxMessage
	require.NoError(t, db.Where("topic = ?", cfg.Kafka.Topic.CreditIssued).Find(&messages).Error)
	require.Len(t, messages, 1)
	require.Equal(t, model.OutboxStatusPending, messages[0].Status)
}
