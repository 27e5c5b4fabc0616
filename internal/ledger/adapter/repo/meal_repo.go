package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

type GormMealRepo struct {
	base
}

func NewMealRepo(db *gorm.DB) *GormMealRepo {
	return &GormMealRepo{base{db: db}}
}

func (r *GormMealRepo) ListBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]domain.MealRecord, error) {
	var rows []domain.MealRecord
	err := r.conn(tx).WithContext(ctx).
		Where("date >= ? AND date < ?", from, to).
		Order("date, member_id, slot").
		Find(&rows).Error
	return rows, err
}

// Upsert SQL: INSERT ... ON CONFLICT (member_id, date, slot) DO UPDATE SET weight = excluded.weight
func (r *GormMealRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *domain.MealRecord) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "date"}, {Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"weight", "updated_at"}),
		}).
		Create(rec).Error
}

func (r *GormMealRepo) Delete(ctx context.Context, tx *gorm.DB, memberID int64, date time.Time, slot domain.MealSlot) error {
	return r.conn(tx).WithContext(ctx).
		Where("member_id = ? AND date = ? AND slot = ?", memberID, date, slot).
		Delete(&domain.MealRecord{}).Error
}
