package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

type GormMemberRepo struct {
	base
}

func NewMemberRepo(db *gorm.DB) *GormMemberRepo {
	return &GormMemberRepo{base{db: db}}
}

func (r *GormMemberRepo) Create(ctx context.Context, tx *gorm.DB, m *domain.Member) error {
	return r.conn(tx).WithContext(ctx).Create(m).Error
}

func (r *GormMemberRepo) FindByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Member, error) {
	var m domain.Member
	if err := r.conn(tx).WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *GormMemberRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]domain.Member, error) {
	var members []domain.Member
	err := r.conn(tx).WithContext(ctx).Where("active = ?", true).Order("id").Find(&members).Error
	return members, err
}
