package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

// DepositService 手工维护押金槽位 / 结转
type DepositService struct {
	db     *gorm.DB
	repos  domain.Repositories
	logger *zap.Logger
}

func NewDepositService(db *gorm.DB, repos domain.Repositories, logger *zap.Logger) *DepositService {
	return &DepositService{db: db, repos: repos, logger: logger}
}

// Get 读取押金记录，不存在时返回全 0 的记录
func (s *DepositService) Get(ctx context.Context, memberID int64, month domain.Month) (*domain.DepositRecord, error) {
	d, err := s.repos.Deposits.FindForUpdate(ctx, nil, memberID, month)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return &domain.DepositRecord{MemberID: memberID, Month: month}, nil
	}
	return d, nil
}

// SetSlot 写入 d1..d8 中的某一个
func (s *DepositService) SetSlot(ctx context.Context, memberID int64, month domain.Month, slot int, value decimal.Decimal) (*domain.DepositRecord, error) {
	return s.apply(ctx, memberID, month, domain.SlotUpdate(slot, value))
}

// SetCarryForward 手工修正结转
func (s *DepositService) SetCarryForward(ctx context.Context, memberID int64, month domain.Month, value decimal.Decimal) (*domain.DepositRecord, error) {
	return s.apply(ctx, memberID, month, domain.CarryForwardUpdate(value))
}

func (s *DepositService) apply(ctx context.Context, memberID int64, month domain.Month, u domain.DepositUpdate) (*domain.DepositRecord, error) {
	if month.IsZero() {
		return nil, &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var out *domain.DepositRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpen(ctx, tx, s.repos.Months, month); err != nil {
			return err
		}
		if _, err := requireMember(ctx, tx, s.repos.Members, memberID); err != nil {
			return err
		}
		var err error
		out, err = writeDeposit(ctx, tx, s.repos.Deposits, memberID, month, u)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrOptimisticLock) {
			s.logger.Warn("deposit write lost a concurrent update", zap.Int64("member_id", memberID), zap.String("month", month.String()))
		}
		return nil, err
	}

	s.logger.Info("deposit updated",
		zap.Int64("member_id", memberID),
		zap.String("month", month.String()),
		zap.Stringer("target", u.Kind),
		zap.Int("slot", u.Slot),
		zap.String("value", u.Value.String()),
	)
	return out, nil
}
