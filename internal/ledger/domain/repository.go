package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 仓储接口 (Port)，Adapter 在 adapter/repo 里用 GORM 实现
// 所有方法都接收 tx：传事务会话则在事务内执行，传 nil 使用默认连接
// 按时间范围读取的方法一律是 [from, to) 左闭右开

// MemberRepository 成员仓储
type MemberRepository interface {
	Create(ctx context.Context, tx *gorm.DB, m *Member) error
	// FindByID 不存在时返回 ErrNotFound
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*Member, error)
	// ListActive 在册成员，按 ID 排序
	ListActive(ctx context.Context, tx *gorm.DB) ([]Member, error)
}

// MealRepository 出勤记录仓储
type MealRepository interface {
	ListBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]MealRecord, error)
	// Upsert 以 (member, date, slot) 为键覆盖 weight
	Upsert(ctx context.Context, tx *gorm.DB, r *MealRecord) error
	// Delete 删除 (member, date, slot)，记录不存在不算错误
	Delete(ctx context.Context, tx *gorm.DB, memberID int64, date time.Time, slot MealSlot) error
}

// PurchaseRepository 采购记录仓储
type PurchaseRepository interface {
	ListBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]ShoppingPurchase, error)
	Create(ctx context.Context, tx *gorm.DB, p *ShoppingPurchase) error
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*ShoppingPurchase, error)
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
}

// TransferRepository 拨款仓储
type TransferRepository interface {
	ListBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]FundTransfer, error)
	Create(ctx context.Context, tx *gorm.DB, t *FundTransfer) error
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*FundTransfer, error)
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
}

// CommonExpenseRepository 公共开销仓储
type CommonExpenseRepository interface {
	ListByMonth(ctx context.Context, tx *gorm.DB, month Month) ([]CommonExpense, error)
	Create(ctx context.Context, tx *gorm.DB, e *CommonExpense) error
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*CommonExpense, error)
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
}

// DepositRepository 押金仓储
type DepositRepository interface {
	ListByMonth(ctx context.Context, tx *gorm.DB, month Month) ([]DepositRecord, error)

	// FindForUpdate 加行锁读取 (member, month) 的记录，不存在返回 nil, nil
	FindForUpdate(ctx context.Context, tx *gorm.DB, memberID int64, month Month) (*DepositRecord, error)

	// CreateIfAbsent 插入空记录，已存在则什么都不做
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, memberID int64, month Month) error

	// ApplyUpdate 定向更新一个字段 (带乐观锁版本号)
	// 版本不匹配返回 ErrOptimisticLock
	ApplyUpdate(ctx context.Context, tx *gorm.DB, id int64, version int64, u DepositUpdate) error

	// UpsertCarryForward 只写 carry_forward，不会重置已有的 d1..d8
	UpsertCarryForward(ctx context.Context, tx *gorm.DB, memberID int64, month Month, value decimal.Decimal) error
}

// MonthStatusRepository 月份状态仓储
type MonthStatusRepository interface {
	// Find 不存在返回 nil, nil (视为未结账)
	Find(ctx context.Context, tx *gorm.DB, month Month) (*MonthStatus, error)
	// Save 以 month 为键 upsert
	Save(ctx context.Context, tx *gorm.DB, s *MonthStatus) error
}

// PayableRepository 经理应还款仓储
type PayableRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *ManagerPayable) error
	DeleteBySource(ctx context.Context, tx *gorm.DB, kind SourceKind, sourceID int64) error
	ListByMonth(ctx context.Context, tx *gorm.DB, month Month) ([]ManagerPayable, error)
}

// UtilityRepository 公共事业仓储
type UtilityRepository interface {
	BillsByMonth(ctx context.Context, tx *gorm.DB, month Month) ([]UtilityBill, error)
	ContributionsByMonth(ctx context.Context, tx *gorm.DB, month Month) ([]UtilityContribution, error)
	// UpsertBill 以 (category, month) 为键
	UpsertBill(ctx context.Context, tx *gorm.DB, b *UtilityBill) error
	// UpsertContribution 以 (member, category, month) 为键
	UpsertContribution(ctx context.Context, tx *gorm.DB, c *UtilityContribution) error
}

// Repositories 一组仓储，便于注入
type Repositories struct {
	Members   MemberRepository
	Meals     MealRepository
	Purchases PurchaseRepository
	Transfers TransferRepository
	Expenses  CommonExpenseRepository
	Deposits  DepositRepository
	Months    MonthStatusRepository
	Payables  PayableRepository
	Utilities UtilityRepository
}
