package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
	"github.com/xxz807/messledger/internal/platform/eventlog"
)

// CarryForward 写入下月的结转 (已按列精度取整)
type CarryForward struct {
	MemberID int64           `json:"member_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// CloseResult 结账结果 (Output)
type CloseResult struct {
	Month         domain.Month      `json:"month"`
	ClosedAt      time.Time         `json:"closed_at"`
	ClosedBy      int64             `json:"closed_by"`
	Settlement    domain.Settlement `json:"settlement"`
	CarryForwards []CarryForward    `json:"carry_forwards"`
}

// MonthService 月结：冻结本月，把每人余额结转为下月押金的 carry_forward
type MonthService struct {
	db     *gorm.DB
	repos  domain.Repositories
	logger *zap.Logger
	events eventlog.Sink
	now    func() time.Time
}

func NewMonthService(db *gorm.DB, repos domain.Repositories, logger *zap.Logger, events eventlog.Sink) *MonthService {
	return &MonthService{
		db:     db,
		repos:  repos,
		logger: logger,
		events: events,
		now:    time.Now,
	}
}

// CloseMonth 结账 (ACID Transaction Script)
// 幂等：重复结账会用同样的输入重算并覆盖同一个 carry_forward
func (s *MonthService) CloseMonth(ctx context.Context, month domain.Month, actorID int64) (*CloseResult, error) {
	if month.IsZero() {
		return nil, &domain.ValidationError{Field: "month", Reason: "is required"}
	}

	result := &CloseResult{Month: month, ClosedBy: actorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 权限
		if err := s.authorize(ctx, tx, actorID); err != nil {
			return err
		}

		// 下月已结账时再写 carry_forward 等于改动一个冻结的月份
		if err := s.ensureNextOpen(ctx, tx, month); err != nil {
			return err
		}

		// 2. 读取快照
		in, err := loadSnapshot(ctx, tx, s.repos, month, month.End())
		if err != nil {
			return err
		}
		if len(in.Members) == 0 {
			return &domain.ValidationError{Field: "members", Reason: "no active members to close the month for"}
		}

		// 3. 计算最终余额
		result.Settlement = domain.ComputeSettlement(in)

		// 4. 定向写入下月 carry_forward，不动 d1..d8
		next := month.Next()
		result.CarryForwards = make([]CarryForward, 0, len(result.Settlement.PerMember))
		for _, m := range result.Settlement.PerMember {
			cf := domain.RoundAmount(m.MealBalance)
			if err := s.repos.Deposits.UpsertCarryForward(ctx, tx, m.MemberID, next, cf); err != nil {
				return err
			}
			result.CarryForwards = append(result.CarryForwards, CarryForward{MemberID: m.MemberID, Amount: cf})
		}

		// 5. 标记已结账
		result.ClosedAt = s.now().UTC()
		return s.repos.Months.Save(ctx, tx, &domain.MonthStatus{
			Month:    month,
			IsClosed: true,
			ClosedAt: &result.ClosedAt,
			ClosedBy: &actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("month closed",
		zap.String("month", month.String()),
		zap.Int64("closed_by", actorID),
		zap.String("meal_rate", result.Settlement.MealRate.String()),
		zap.Int("carry_forwards", len(result.Settlement.PerMember)),
	)
	s.events.Log(eventlog.NewEvent(
		eventlog.WithType("month.closed"),
		eventlog.WithData(map[string]any{
			"month":     month.String(),
			"closed_by": actorID,
			"meal_rate": result.Settlement.MealRate.String(),
			"balance":   result.Settlement.Totals.MealBalance.String(),
		}),
		eventlog.WithMetadata(map[string]any{"actor_id": actorID}),
	))
	return result, nil
}

// OpenMonth 重开：只清除结账标记，不回滚已写入下月的 carry_forward
// 修改后需重新结账来刷新结转；下月已结账时拒绝重开
func (s *MonthService) OpenMonth(ctx context.Context, month domain.Month, actorID int64) error {
	if month.IsZero() {
		return &domain.ValidationError{Field: "month", Reason: "is required"}
	}

	reopened := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.authorize(ctx, tx, actorID); err != nil {
			return err
		}
		if err := s.ensureNextOpen(ctx, tx, month); err != nil {
			return err
		}

		st, err := s.repos.Months.Find(ctx, tx, month)
		if err != nil {
			return err
		}
		if st == nil || !st.IsClosed {
			return nil
		}
		reopened = true
		// 保留上次结账的时间与操作人
		return s.repos.Months.Save(ctx, tx, &domain.MonthStatus{
			Month:    month,
			IsClosed: false,
			ClosedAt: st.ClosedAt,
			ClosedBy: st.ClosedBy,
		})
	})
	if err != nil {
		return err
	}

	if reopened {
		s.logger.Info("month reopened", zap.String("month", month.String()), zap.Int64("opened_by", actorID))
		s.events.Log(eventlog.NewEvent(
			eventlog.WithType("month.opened"),
			eventlog.WithData(map[string]any{"month": month.String(), "opened_by": actorID}),
			eventlog.WithMetadata(map[string]any{"actor_id": actorID}),
		))
	}
	return nil
}

// Status 月份状态，没有记录时视为未结账
func (s *MonthService) Status(ctx context.Context, month domain.Month) (domain.MonthStatus, error) {
	st, err := s.repos.Months.Find(ctx, nil, month)
	if err != nil {
		return domain.MonthStatus{}, err
	}
	if st == nil {
		return domain.MonthStatus{Month: month}, nil
	}
	return *st, nil
}

func (s *MonthService) authorize(ctx context.Context, tx *gorm.DB, actorID int64) error {
	actor, err := requireMember(ctx, tx, s.repos.Members, actorID)
	if err != nil {
		return err
	}
	if !actor.Role.CanCloseMonth() {
		return domain.ErrForbidden
	}
	return nil
}

func (s *MonthService) ensureNextOpen(ctx context.Context, tx *gorm.DB, month domain.Month) error {
	next, err := s.repos.Months.Find(ctx, tx, month.Next())
	if err != nil {
		return err
	}
	if next != nil && next.IsClosed {
		return &domain.ConflictError{Month: month, Reason: "next month " + month.Next().String() + " is already closed"}
	}
	return nil
}
