package service

import (
	"context"
	"testing"
	"time"

	"rewardsystem/internal/model"

	"github.com/stretchr/testify/require"
)

func TestCreateRewardValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db)

	tests := []struct {
		name    string
		req     *CreateRewardRequest
		wantErr error
	}{
		{"缺少名称", &CreateRewardRequest{DefaultCost: 10, Quantity: 1}, ErrRewardNameRequired},
		{"原价为零", &CreateRewardRequest{Name: "奖品", DefaultCost: 0, Quantity: 1}, ErrInvalidCost},
		{"折扣价为负", &CreateRewardRequest{Name: "奖品", DefaultCost: 10, DiscountCost: -1, Quantity: 1}, ErrInvalidCost},
		{"库存为负", &CreateRewardRequest{Name: "奖品", DefaultCost: 10, Quantity: -1}, ErrInvalidStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateReward(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// 库存为零是合法的（上架即售罄，不出现在可兑换列表）
	reward, err := svc.CreateReward(context.Background(), &CreateRewardRequest{
		Name: "零库存奖品", DefaultCost: 10, Quantity: 0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, reward.RewardNo)
}

// 上架后可兑换列表的可见性由库存决定
func TestListAvailableRoundTrip(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db)

	inStock := seedReward(t, db, "有货", 3, 10, 0)
	seedReward(t, db, "无货", 0, 10, 0)

	available, err := svc.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, inStock.ID, available[0].ID)

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestListAllOrderedByListedAtDesc(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db)

	oldest := seedReward(t, db, "最早上架", 1, 10, 0)
	middle := seedReward(t, db, "中间上架", 1, 10, 0)
	newest := seedReward(t, db, "最新上架", 1, 10, 0)

	// 显式错开上架时间，避免同一毫秒导致排序不稳定
	base := time.Now().Add(-time.Hour)
	for i, id := range []int64{oldest.ID, middle.ID, newest.ID} {
		require.NoError(t, db.Model(&model.Reward{}).Where("id = ?", id).
			Update("listed_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, newest.ID, all[0].ID)
	require.Equal(t, middle.ID, all[1].ID)
	require.Equal(t, oldest.ID, all[2].ID)
}

func TestEffectiveCost(t *testing.T) {
	tests := []struct {
		name         string
		defaultCost  int64
		discountCost int64
		want         int64
	}{
		{"无折扣", 100, 0, 100},
		{"有折扣", 100, 60, 60},
		{"折扣为零按原价", 100, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reward := &model.Reward{DefaultCost: tt.defaultCost, DiscountCost: tt.discountCost}
			require.Equal(t, tt.want, reward.EffectiveCost())
		})
	}
}
