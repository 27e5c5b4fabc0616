package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

// ensureOpen 写路径的前置检查：已结账的月份拒绝任何写入
func ensureOpen(ctx context.Context, tx *gorm.DB, months domain.MonthStatusRepository, month domain.Month) error {
	st, err := months.Find(ctx, tx, month)
	if err != nil {
		return fmt.Errorf("load month status %s: %w", month, err)
	}
	if st != nil && st.IsClosed {
		return &domain.ConflictError{Month: month}
	}
	return nil
}

// requireMember 成员必须存在
func requireMember(ctx context.Context, tx *gorm.DB, members domain.MemberRepository, id int64) (*domain.Member, error) {
	m, err := members.FindByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("member %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return m, nil
}

// loadSnapshot 读取某月 [month.Start, until) 的账本行
// 出勤 / 采购按日期范围，公共开销 / 押金按月份键
func loadSnapshot(ctx context.Context, tx *gorm.DB, r domain.Repositories, month domain.Month, until time.Time) (domain.SettlementInput, error) {
	var in domain.SettlementInput
	var err error

	if in.Members, err = r.Members.ListActive(ctx, tx); err != nil {
		return in, fmt.Errorf("list members: %w", err)
	}
	if in.Meals, err = r.Meals.ListBetween(ctx, tx, month.Start(), until); err != nil {
		return in, fmt.Errorf("list meals: %w", err)
	}
	if in.Purchases, err = r.Purchases.ListBetween(ctx, tx, month.Start(), until); err != nil {
		return in, fmt.Errorf("list purchases: %w", err)
	}
	if in.CommonExpenses, err = r.Expenses.ListByMonth(ctx, tx, month); err != nil {
		return in, fmt.Errorf("list common expenses: %w", err)
	}
	if in.Deposits, err = r.Deposits.ListByMonth(ctx, tx, month); err != nil {
		return in, fmt.Errorf("list deposits: %w", err)
	}
	return in, nil
}

// loadShopperFloat 某人某月的采购备用金
func loadShopperFloat(ctx context.Context, tx *gorm.DB, r domain.Repositories, memberID int64, month domain.Month) (domain.ShopperFloat, error) {
	transfers, err := r.Transfers.ListBetween(ctx, tx, month.Start(), month.End())
	if err != nil {
		return domain.ShopperFloat{}, fmt.Errorf("list transfers: %w", err)
	}
	purchases, err := r.Purchases.ListBetween(ctx, tx, month.Start(), month.End())
	if err != nil {
		return domain.ShopperFloat{}, fmt.Errorf("list purchases: %w", err)
	}
	expenses, err := r.Expenses.ListByMonth(ctx, tx, month)
	if err != nil {
		return domain.ShopperFloat{}, fmt.Errorf("list common expenses: %w", err)
	}
	return domain.ComputeShopperFloat(memberID, transfers, purchases, expenses), nil
}

// writeDeposit 在事务内对 (member, month) 的押金记录做一次定向更新
// 先建空行 (若不存在)，再加行锁读取，最后按版本号 CAS 写入
func writeDeposit(ctx context.Context, tx *gorm.DB, deposits domain.DepositRepository, memberID int64, month domain.Month, u domain.DepositUpdate) (*domain.DepositRecord, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := deposits.CreateIfAbsent(ctx, tx, memberID, month); err != nil {
		return nil, fmt.Errorf("create deposit record: %w", err)
	}
	d, err := deposits.FindForUpdate(ctx, tx, memberID, month)
	if err != nil {
		return nil, fmt.Errorf("lock deposit record: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("deposit record for member %d month %s: %w", memberID, month, domain.ErrNotFound)
	}
	if err := deposits.ApplyUpdate(ctx, tx, d.ID, d.Version, u); err != nil {
		return nil, err
	}
	if err := d.Apply(u); err != nil {
		return nil, err
	}
	d.Version++
	return d, nil
}
