package repo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

type GormDepositRepo struct {
	base
}

func NewDepositRepo(db *gorm.DB) *GormDepositRepo {
	return &GormDepositRepo{base{db: db}}
}

func (r *GormDepositRepo) ListByMonth(ctx context.Context, tx *gorm.DB, month domain.Month) ([]domain.DepositRecord, error) {
	var rows []domain.DepositRecord
	err := r.conn(tx).WithContext(ctx).Where("month = ?", month).Order("member_id").Find(&rows).Error
	return rows, err
}

// FindForUpdate SQL: SELECT ... WHERE member_id = ? AND month = ? FOR UPDATE
// SQLite 不支持行锁，驱动会忽略 FOR UPDATE，此时依赖 version 做 CAS
func (r *GormDepositRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, memberID int64, month domain.Month) (*domain.DepositRecord, error) {
	var d domain.DepositRecord
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ? AND month = ?", memberID, month).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateIfAbsent SQL: INSERT ... ON CONFLICT (member_id, month) DO NOTHING
// 并发创建时只有一方成功，另一方随后用 FindForUpdate 读到同一行
func (r *GormDepositRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, memberID int64, month domain.Month) error {
	rec := &domain.DepositRecord{MemberID: memberID, Month: month, Version: 1}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "month"}},
			DoNothing: true,
		}).
		Create(rec).Error
}

// ApplyUpdate 实现乐观锁更新
// SQL: UPDATE deposit_records SET <col> = ?, version = version + 1 WHERE id = ? AND version = ?
func (r *GormDepositRepo) ApplyUpdate(ctx context.Context, tx *gorm.DB, id int64, version int64, u domain.DepositUpdate) error {
	col, err := u.Column()
	if err != nil {
		return err
	}

	result := r.conn(tx).WithContext(ctx).Model(&domain.DepositRecord{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			col:       u.Value,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}

	// 没有行被更新，说明 version 不匹配（被别人改过了）
	if result.RowsAffected == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// UpsertCarryForward 定向 upsert：只更新 carry_forward，d1..d8 保持原样
// SQL: INSERT ... ON CONFLICT (member_id, month) DO UPDATE SET carry_forward = ?, version = version + 1
func (r *GormDepositRepo) UpsertCarryForward(ctx context.Context, tx *gorm.DB, memberID int64, month domain.Month, value decimal.Decimal) error {
	rec := &domain.DepositRecord{
		MemberID:     memberID,
		Month:        month,
		CarryForward: value,
		Version:      1,
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "member_id"}, {Name: "month"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				domain.ColumnCarryForward: value,
				"version":                 gorm.Expr("deposit_records.version + 1"),
				"updated_at":              time.Now(),
			}),
		}).
		Create(rec).Error
}
