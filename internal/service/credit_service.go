package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/idgen"

	"gorm.io/gorm"
)

var (
	ErrInvalidAmount = errors.New("发放积分必须大于0")
)

// CreditService 积分发放
// 余额更新和流水写入在同一个数据库事务内，要么都生效要么都不生效
type CreditService struct {
	db              *gorm.DB
	cfg             *config.Config
	profileRepo     *repository.ProfileRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewCreditService(db *gorm.DB, cfg *config.Config) *CreditService {
	return &CreditService{
		db:              db,
		cfg:             cfg,
		profileRepo:     repository.NewProfileRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// AddCredits 给档案发放积分，返回更新后的余额
//
// amount 必须是正整数；当前积分和累计积分同步增加，
// 流水关联来源事件ID，便于追溯这笔积分因何发放
func (s *CreditService) AddCredits(ctx context.Context, profileID int64, amount int64, eventID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var balanceAfter int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.profileRepo.Increase(ctx, tx, profileID, amount); err != nil {
			return fmt.Errorf("发放积分失败: %w", err)
		}

		// 审计余额回读增加后的行：并发给同一档案发放时，
		// 事务开头的快照读会拿到过期余额，写出重复的 before/after
		profile, err := s.profileRepo.GetByID(ctx, tx, profileID)
		if err != nil {
			return err
		}
		balanceAfter = profile.CurrentCredits

		transaction := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			ProfileID:     profileID,
			EventID:       eventID,
			Amount:        amount,
			Type:          model.TransactionTypeIssue,
			BalanceBefore: balanceAfter - amount,
			BalanceAfter:  balanceAfter,
			Remark:        fmt.Sprintf("发放-事件%s", eventID),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"profile_id": profileID,
			"event_id":   eventID,
			"amount":     amount,
			"balance":    balanceAfter,
			"issued_at":  time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: transaction.TransactionNo,
			Topic:      s.cfg.Kafka.Topic.CreditIssued,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	log.Printf("发放成功: profileID=%d, eventID=%s, amount=%d, balance=%d",
		profileID, eventID, amount, balanceAfter)

	return balanceAfter, nil
}
