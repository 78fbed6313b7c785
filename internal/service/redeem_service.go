package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/infrastructure/lock"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ============================================================================
// 兑换引擎
// ============================================================================
//
// 【关键点】兑换是整个系统最核心的操作，需要保证：
// 1. 幂等性：相同的 request_id 只会兑换一次
// 2. 原子性：库存扣减、流水记录、积分扣减、兑换记录必须同时成功或同时失败
// 3. 并发安全：靠数据库条件更新保证，不依赖进程内锁（多副本部署下进程锁不可靠）
//
// 失败原因优先级：库存检查在前，积分检查在后 ——
// 库存和积分同时不足时返回 unavailable 而不是 insufficient

var (
	ErrInvalidQuantity = errors.New("兑换数量必须大于0")
)

// 兑换失败原因码，直接对外返回
const (
	RedeemReasonUnavailable     = "unavailable"      // 奖品不存在或库存不足
	RedeemReasonInsufficient    = "insufficient"     // 积分不足
	RedeemReasonInvalidQuantity = "invalid_quantity" // 兑换数量不合法
	RedeemReasonUnknown         = "unknown"          // 其他失败（存储异常等）
)

type RedeemService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	rewardRepo      *repository.RewardRepository
	profileRepo     *repository.ProfileRepository
	transactionRepo *repository.TransactionRepository
	redemptionRepo  *repository.RedemptionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewRedeemService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *RedeemService {
	return &RedeemService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		rewardRepo:      repository.NewRewardRepository(db),
		profileRepo:     repository.NewProfileRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		redemptionRepo:  repository.NewRedemptionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type RedeemRequest struct {
	RequestID string `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	RewardID  int64  `json:"reward_id" binding:"required"`
	ProfileID int64  `json:"profile_id" binding:"required"`
	Quantity  int64  `json:"quantity"` // 默认 1
}

type RedeemResult struct {
	OK           bool   `json:"ok"`
	Reason       string `json:"error,omitempty"`
	RedemptionNo string `json:"redemption_no,omitempty"`
	TotalCost    int64  `json:"total_cost,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Redeem 执行一次兑换
//
// 业务规则失败（unavailable / insufficient / invalid_quantity）是预期结果，
// 通过 RedeemResult.Reason 返回，error 为 nil；
// 只有基础设施异常才返回非 nil error，此时 Reason 固定为 unknown，由调用方决定是否重试。
func (s *RedeemService) Redeem(ctx context.Context, req *RedeemRequest) (*RedeemResult, error) {
	// 数量校验是纯输入校验，在任何锁和读取之前短路返回
	if req.Quantity < 1 {
		return &RedeemResult{OK: false, Reason: RedeemReasonInvalidQuantity}, nil
	}

	// 幂等校验
	existing, err := s.redemptionRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return &RedeemResult{OK: false, Reason: RedeemReasonUnknown}, fmt.Errorf("查询兑换记录失败: %w", err)
	}
	if existing != nil {
		return &RedeemResult{
			OK:           true,
			RedemptionNo: existing.RedemptionNo,
			TotalCost:    existing.TotalCost,
			Message:      "兑换已存在",
		}, nil
	}

	// 按档案维度加分布式锁，减少同一用户重复提交时的无效事务冲突。
	// 正确性不依赖这把锁：库存和积分的守卫更新在数据库层保证不会超扣。
	if s.redisClient != nil {
		redeemLock := lock.NewRedeemLock(s.redisClient, req.ProfileID, req.RequestID)
		if err := redeemLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return &RedeemResult{OK: false, Reason: RedeemReasonUnknown}, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer redeemLock.Unlock(ctx)

		// 获取锁后再次检查幂等
		existing, err = s.redemptionRepo.GetByRequestID(ctx, req.RequestID)
		if err != nil {
			return &RedeemResult{OK: false, Reason: RedeemReasonUnknown}, fmt.Errorf("查询兑换记录失败: %w", err)
		}
		if existing != nil {
			return &RedeemResult{
				OK:           true,
				RedemptionNo: existing.RedemptionNo,
				TotalCost:    existing.TotalCost,
				Message:      "兑换已存在",
			}, nil
		}
	}

	redemptionNo := idgen.GenerateRedemptionNo()
	var totalCost int64

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 1. 读取奖品并预检库存（库存检查必须在积分检查之前）
		reward, err := s.rewardRepo.GetByID(ctx, tx, req.RewardID)
		if err != nil {
			return err
		}
		if reward.Quantity < req.Quantity {
			return repository.ErrStockNotEnough
		}

		// 2. 计算总价：折扣价 > 0 时用折扣价，否则用原价；总价在此冻结
		totalCost = reward.EffectiveCost() * req.Quantity

		// 3. 读取档案并预检积分
		profile, err := s.profileRepo.GetByID(ctx, tx, req.ProfileID)
		if err != nil {
			return err
		}
		if profile.CurrentCredits < totalCost {
			return repository.ErrCreditsNotEnough
		}

		// 4. 条件扣减库存，并发抢最后一件时败者在这里拿到库存不足
		if err := s.rewardRepo.DecrementQuantity(ctx, tx, req.RewardID, req.Quantity); err != nil {
			return err
		}

		// 5. 条件扣减积分，并发竞争同一笔余额时败者在这里拿到积分不足
		if err := s.profileRepo.Deduct(ctx, tx, req.ProfileID, totalCost); err != nil {
			return err
		}

		// 6. 记录扣减流水（兑换流水不关联事件ID）
		// 审计余额必须回读扣减后的行：并发修改同一档案时，
		// 第 3 步的快照读可能已经过期，直接拿它算 before/after 会写出重复的余额
		after, err := s.profileRepo.GetByID(ctx, tx, req.ProfileID)
		if err != nil {
			return err
		}
		transaction := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			ProfileID:     req.ProfileID,
			Amount:        -totalCost,
			Type:          model.TransactionTypeRedeem,
			BalanceBefore: after.CurrentCredits + totalCost,
			BalanceAfter:  after.CurrentCredits,
			Remark:        fmt.Sprintf("兑换-%s-%d件", reward.Name, req.Quantity),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		// 7. 写入兑换记录，总价为第 2 步冻结的金额
		redemption := &model.Redemption{
			RedemptionNo: redemptionNo,
			RequestID:    req.RequestID,
			UserID:       profile.UserID,
			RewardID:     req.RewardID,
			Quantity:     req.Quantity,
			TotalCost:    totalCost,
		}
		if err := s.redemptionRepo.Create(ctx, tx, redemption); err != nil {
			return fmt.Errorf("写入兑换记录失败: %w", err)
		}

		// 8. 事务性发件箱：兑换成功事件随本事务一起提交
		msgPayload := map[string]interface{}{
			"redemption_no": redemptionNo,
			"user_id":       profile.UserID,
			"profile_id":    req.ProfileID,
			"reward_id":     req.RewardID,
			"quantity":      req.Quantity,
			"total_cost":    totalCost,
			"redeemed_at":   time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: redemptionNo,
			Topic:      s.cfg.Kafka.Topic.RewardRedeemed,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return s.failureResult(err)
	}

	log.Printf("兑换成功: redemptionNo=%s, profileID=%d, rewardID=%d, totalCost=%d",
		redemptionNo, req.ProfileID, req.RewardID, totalCost)

	return &RedeemResult{
		OK:           true,
		RedemptionNo: redemptionNo,
		TotalCost:    totalCost,
		Message:      "兑换成功",
	}, nil
}

// failureResult 把事务错误映射为失败原因码
// 三个业务原因码优先匹配，剩下的一律归入 unknown 并向上返回 error
func (s *RedeemService) failureResult(err error) (*RedeemResult, error) {
	switch {
	case errors.Is(err, repository.ErrRewardNotFound),
		errors.Is(err, repository.ErrStockNotEnough):
		return &RedeemResult{OK: false, Reason: RedeemReasonUnavailable}, nil
	case errors.Is(err, repository.ErrCreditsNotEnough):
		return &RedeemResult{OK: false, Reason: RedeemReasonInsufficient}, nil
	default:
		return &RedeemResult{OK: false, Reason: RedeemReasonUnknown}, fmt.Errorf("兑换失败: %w", err)
	}
}
