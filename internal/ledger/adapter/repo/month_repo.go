package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

type GormMonthStatusRepo struct {
	base
}

func NewMonthStatusRepo(db *gorm.DB) *GormMonthStatusRepo {
	return &GormMonthStatusRepo{base{db: db}}
}

func (r *GormMonthStatusRepo) Find(ctx context.Context, tx *gorm.DB, month domain.Month) (*domain.MonthStatus, error) {
	var s domain.MonthStatus
	err := r.conn(tx).WithContext(ctx).Where("month = ?", month).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormMonthStatusRepo) Save(ctx context.Context, tx *gorm.DB, s *domain.MonthStatus) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_closed", "closed_at", "closed_by", "updated_at"}),
		}).
		Create(s).Error
}

// ---------------------------------------------------------

type GormUtilityRepo struct {
	base
}

func NewUtilityRepo(db *gorm.DB) *GormUtilityRepo {
	return &GormUtilityRepo{base{db: db}}
}

func (r *GormUtilityRepo) BillsByMonth(ctx context.Context, tx *gorm.DB, month domain.Month) ([]domain.UtilityBill, error) {
	var rows []domain.UtilityBill
	err := r.conn(tx).WithContext(ctx).Where("month = ?", month).Order("category").Find(&rows).Error
	return rows, err
}

func (r *GormUtilityRepo) ContributionsByMonth(ctx context.Context, tx *gorm.DB, month domain.Month) ([]domain.UtilityContribution, error) {
	var rows []domain.UtilityContribution
	err := r.conn(tx).WithContext(ctx).Where("month = ?", month).Order("member_id, category").Find(&rows).Error
	return rows, err
}

func (r *GormUtilityRepo) UpsertBill(ctx context.Context, tx *gorm.DB, b *domain.UtilityBill) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(b).Error
}

func (r *GormUtilityRepo) UpsertContribution(ctx context.Context, tx *gorm.DB, c *domain.UtilityContribution) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "category"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(c).Error
}
