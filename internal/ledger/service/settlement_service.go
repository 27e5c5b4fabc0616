package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

// SettlementService 只读：看板、月度计算页、打印报表共用同一个计算器
type SettlementService struct {
	db     *gorm.DB
	repos  domain.Repositories
	logger *zap.Logger
}

func NewSettlementService(db *gorm.DB, repos domain.Repositories, logger *zap.Logger) *SettlementService {
	return &SettlementService{db: db, repos: repos, logger: logger}
}

// Compute 整月结算
func (s *SettlementService) Compute(ctx context.Context, month domain.Month) (domain.Settlement, error) {
	if month.IsZero() {
		return domain.Settlement{}, &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	in, err := loadSnapshot(ctx, s.db.WithContext(ctx), s.repos, month, month.End())
	if err != nil {
		return domain.Settlement{}, err
	}
	result := domain.ComputeSettlement(in)
	s.logger.Debug("settlement computed",
		zap.String("month", month.String()),
		zap.String("meal_rate", result.MealRate.String()),
		zap.Int("members", len(result.PerMember)),
	)
	return result, nil
}

// ComputeToDate 截至 asOf 当天 (含) 的结算：出勤与采购只取到 asOf
// 公共开销与押金仍按月份键整体计入
func (s *SettlementService) ComputeToDate(ctx context.Context, month domain.Month, asOf time.Time) (domain.Settlement, error) {
	if month.IsZero() {
		return domain.Settlement{}, &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	until := domain.DateOf(asOf).AddDate(0, 0, 1)
	if until.After(month.End()) {
		until = month.End()
	}
	if !until.After(month.Start()) {
		return domain.Settlement{}, &domain.ValidationError{Field: "as_of", Reason: fmt.Sprintf("%s is before %s", asOf.Format(domain.MonthLayout), month)}
	}
	in, err := loadSnapshot(ctx, s.db.WithContext(ctx), s.repos, month, until)
	if err != nil {
		return domain.Settlement{}, err
	}
	return domain.ComputeSettlement(in), nil
}

// ShopperFloat 某采购人当月的备用金
func (s *SettlementService) ShopperFloat(ctx context.Context, memberID int64, month domain.Month) (domain.ShopperFloat, error) {
	if month.IsZero() {
		return domain.ShopperFloat{}, &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	return loadShopperFloat(ctx, s.db.WithContext(ctx), s.repos, memberID, month)
}

// UtilitySummary 当月公共事业分摊
func (s *SettlementService) UtilitySummary(ctx context.Context, month domain.Month) (domain.UtilitySummary, error) {
	if month.IsZero() {
		return domain.UtilitySummary{}, &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	members, err := s.repos.Members.ListActive(ctx, nil)
	if err != nil {
		return domain.UtilitySummary{}, err
	}
	bills, err := s.repos.Utilities.BillsByMonth(ctx, nil, month)
	if err != nil {
		return domain.UtilitySummary{}, err
	}
	contributions, err := s.repos.Utilities.ContributionsByMonth(ctx, nil, month)
	if err != nil {
		return domain.UtilitySummary{}, err
	}
	return domain.ComputeUtilitySummary(members, bills, contributions), nil
}

// Payables 当月经理应还款
func (s *SettlementService) Payables(ctx context.Context, month domain.Month) ([]domain.ManagerPayable, error) {
	return s.repos.Payables.ListByMonth(ctx, nil, month)
}
