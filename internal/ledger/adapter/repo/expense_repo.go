package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

type GormPurchaseRepo struct {
	base
}

func NewPurchaseRepo(db *gorm.DB) *GormPurchaseRepo {
	return &GormPurchaseRepo{base{db: db}}
}

func (r *GormPurchaseRepo) ListBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]domain.ShoppingPurchase, error) {
	var rows []domain.ShoppingPurchase
	err := r.conn(tx).WithContext(ctx).Where("date >= ? AND date < ?", from, to).Order("date, id").Find(&rows).Error
	return rows, err
}

func (r *GormPurchaseRepo) Create(ctx context.Context, tx *gorm.DB, p *domain.ShoppingPurchase) error {
	return r.conn(tx).WithContext(ctx).Create(p).Error
}

func (r *GormPurchaseRepo) FindByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.ShoppingPurchase, error) {
	var p domain.ShoppingPurchase
	if err := r.conn(tx).WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *GormPurchaseRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	return r.conn(tx).WithContext(ctx).Delete(&domain.ShoppingPurchase{}, id).Error
}

// ---------------------------------------------------------

type GormTransferRepo struct {
	base
}

func NewTransferRepo(db *gorm.DB) *GormTransferRepo {
	return &GormTransferRepo{base{db: db}}
}

func (r *GormTransferRepo) ListBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]domain.FundTransfer, error) {
	var rows []domain.FundTransfer
	err := r.conn(tx).WithContext(ctx).Where("date >= ? AND date < ?", from, to).Order("date, id").Find(&rows).Error
	return rows, err
}

func (r *GormTransferRepo) Create(ctx context.Context, tx *gorm.DB, t *domain.FundTransfer) error {
	return r.conn(tx).WithContext(ctx).Create(t).Error
}

func (r *GormTransferRepo) FindByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.FundTransfer, error) {
	var t domain.FundTransfer
	if err := r.conn(tx).WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *GormTransferRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	return r.conn(tx).WithContext(ctx).Delete(&domain.FundTransfer{}, id).Error
}

// ---------------------------------------------------------

type GormCommonExpenseRepo struct {
	base
}

func NewCommonExpenseRepo(db *gorm.DB) *GormCommonExpenseRepo {
	return &GormCommonExpenseRepo{base{db: db}}
}

func (r *GormCommonExpenseRepo) ListByMonth(ctx context.Context, tx *gorm.DB, month domain.Month) ([]domain.CommonExpense, error) {
	var rows []domain.CommonExpense
	err := r.conn(tx).WithContext(ctx).Where("month = ?", month).Order("id").Find(&rows).Error
	return rows, err
}

func (r *GormCommonExpenseRepo) Create(ctx context.Context, tx *gorm.DB, e *domain.CommonExpense) error {
	return r.conn(tx).WithContext(ctx).Create(e).Error
}

func (r *GormCommonExpenseRepo) FindByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.CommonExpense, error) {
	var e domain.CommonExpense
	if err := r.conn(tx).WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *GormCommonExpenseRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	return r.conn(tx).WithContext(ctx).Delete(&domain.CommonExpense{}, id).Error
}

// ---------------------------------------------------------

type GormPayableRepo struct {
	base
}

func NewPayableRepo(db *gorm.DB) *GormPayableRepo {
	return &GormPayableRepo{base{db: db}}
}

func (r *GormPayableRepo) Create(ctx context.Context, tx *gorm.DB, p *domain.ManagerPayable) error {
	return r.conn(tx).WithContext(ctx).Create(p).Error
}

func (r *GormPayableRepo) DeleteBySource(ctx context.Context, tx *gorm.DB, kind domain.SourceKind, sourceID int64) error {
	return r.conn(tx).WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", kind, sourceID).
		Delete(&domain.ManagerPayable{}).Error
}

func (r *GormPayableRepo) ListByMonth(ctx context.Context, tx *gorm.DB, month domain.Month) ([]domain.ManagerPayable, error) {
	var rows []domain.ManagerPayable
	err := r.conn(tx).WithContext(ctx).Where("month = ?", month).Order("id").Find(&rows).Error
	return rows, err
}
