package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
	"github.com/xxz807/messledger/internal/platform/eventlog"
)

// MealWeightUpdate 批量出勤中的一条
type MealWeightUpdate struct {
	MemberID int64
	Date     time.Time
	Slot     domain.MealSlot
	Weight   decimal.Decimal
}

func (u MealWeightUpdate) key() string {
	return fmt.Sprintf("%d/%s/%s", u.MemberID, domain.DateOf(u.Date).Format(domain.MonthLayout), u.Slot)
}

// ContributionUpdate 批量公共事业缴费中的一条
type ContributionUpdate struct {
	MemberID int64
	Category domain.UtilityCategory
	Month    domain.Month
	Amount   decimal.Decimal
}

func (u ContributionUpdate) key() string {
	return fmt.Sprintf("%d/%s/%s", u.MemberID, u.Category, u.Month)
}

// BatchService 批量写入：逐条独立 upsert，失败的逐条报告，成功的不回滚
type BatchService struct {
	db     *gorm.DB
	repos  domain.Repositories
	logger *zap.Logger
	events eventlog.Sink
}

func NewBatchService(db *gorm.DB, repos domain.Repositories, logger *zap.Logger, events eventlog.Sink) *BatchService {
	return &BatchService{db: db, repos: repos, logger: logger, events: events}
}

// BulkUpdateMeals 批量更新出勤，weight 为 0 时删除记录
// 返回每条的结果；有失败时 error 为 *domain.BatchError
func (s *BatchService) BulkUpdateMeals(ctx context.Context, updates []MealWeightUpdate) ([]domain.ItemResult, error) {
	results := make([]domain.ItemResult, 0, len(updates))
	for i, u := range updates {
		err := s.updateMeal(ctx, u)
		results = append(results, domain.NewItemResult(i, u.key(), err))
	}
	s.report("batch.meals", results)
	return results, domain.BatchOutcome(results)
}

func (s *BatchService) updateMeal(ctx context.Context, u MealWeightUpdate) error {
	if !u.Slot.IsValid() {
		return &domain.ValidationError{Field: "slot", Reason: string(u.Slot)}
	}
	if u.Weight.IsNegative() {
		return &domain.ValidationError{Field: "weight", Reason: "must not be negative"}
	}
	if err := domain.CheckScale("weight", u.Weight, domain.WeightScale); err != nil {
		return err
	}
	if u.Date.IsZero() {
		return &domain.ValidationError{Field: "date", Reason: "is required"}
	}
	date := domain.DateOf(u.Date)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpen(ctx, tx, s.repos.Months, domain.MonthOf(date)); err != nil {
			return err
		}
		if _, err := requireMember(ctx, tx, s.repos.Members, u.MemberID); err != nil {
			return err
		}
		if u.Weight.IsZero() {
			return s.repos.Meals.Delete(ctx, tx, u.MemberID, date, u.Slot)
		}
		return s.repos.Meals.Upsert(ctx, tx, &domain.MealRecord{
			MemberID: u.MemberID,
			Date:     date,
			Slot:     u.Slot,
			Weight:   u.Weight,
		})
	})
}

// BulkUpsertContributions 批量写入公共事业缴费
func (s *BatchService) BulkUpsertContributions(ctx context.Context, updates []ContributionUpdate) ([]domain.ItemResult, error) {
	results := make([]domain.ItemResult, 0, len(updates))
	for i, u := range updates {
		err := s.upsertContribution(ctx, u)
		results = append(results, domain.NewItemResult(i, u.key(), err))
	}
	s.report("batch.utilities", results)
	return results, domain.BatchOutcome(results)
}

func (s *BatchService) upsertContribution(ctx context.Context, u ContributionUpdate) error {
	if !u.Category.IsValid() {
		return &domain.ValidationError{Field: "category", Reason: string(u.Category)}
	}
	if u.Month.IsZero() {
		return &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	if u.Amount.IsNegative() {
		return &domain.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if err := domain.CheckScale("amount", u.Amount, domain.AmountScale); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpen(ctx, tx, s.repos.Months, u.Month); err != nil {
			return err
		}
		if _, err := requireMember(ctx, tx, s.repos.Members, u.MemberID); err != nil {
			return err
		}
		return s.repos.Utilities.UpsertContribution(ctx, tx, &domain.UtilityContribution{
			MemberID: u.MemberID,
			Category: u.Category,
			Month:    u.Month,
			Amount:   u.Amount,
		})
	})
}

// SetUtilityBill 写入某类别某月的账单总额
func (s *BatchService) SetUtilityBill(ctx context.Context, category domain.UtilityCategory, month domain.Month, amount decimal.Decimal) error {
	if !category.IsValid() {
		return &domain.ValidationError{Field: "category", Reason: string(category)}
	}
	if month.IsZero() {
		return &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	if amount.IsNegative() {
		return &domain.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if err := domain.CheckScale("amount", amount, domain.AmountScale); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpen(ctx, tx, s.repos.Months, month); err != nil {
			return err
		}
		return s.repos.Utilities.UpsertBill(ctx, tx, &domain.UtilityBill{Category: category, Month: month, Amount: amount})
	})
}

func (s *BatchService) report(eventType string, results []domain.ItemResult) {
	failed := 0
	failedKeys := make([]string, 0)
	for _, r := range results {
		if !r.OK() {
			failed++
			failedKeys = append(failedKeys, r.Key)
			s.logger.Warn("batch item failed", zap.String("batch", eventType), zap.String("key", r.Key), zap.Error(r.Err))
		}
	}
	s.logger.Info("batch applied", zap.String("batch", eventType), zap.Int("total", len(results)), zap.Int("failed", failed))
	s.events.Log(eventlog.NewEvent(
		eventlog.WithType(eventType),
		eventlog.WithData(map[string]any{"total": len(results), "failed": failed}),
		eventlog.WithMetadata(map[string]any{"failed_keys": failedKeys}),
	))
}
