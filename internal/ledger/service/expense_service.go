package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxz807/messledger/internal/ledger/domain"
	"github.com/xxz807/messledger/internal/platform/eventlog"
)

// CommonExpenseInput 记一笔公共开销 (Input)
type CommonExpenseInput struct {
	Name       string
	Amount     decimal.Decimal
	Month      domain.Month
	PayerID    int64
	Preference domain.PaymentPreference
}

// PurchaseInput 记一笔采购 (Input)
type PurchaseInput struct {
	BuyerID    int64
	Amount     decimal.Decimal
	Date       time.Time
	Preference domain.PaymentPreference
	Note       string
}

// TransferInput 经理与采购人之间的拨款 (Input)
type TransferInput struct {
	BuyerID int64
	Amount  decimal.Decimal // 有符号
	Date    time.Time
	Note    string
}

// AutoDeposit 自动存款的位置
type AutoDeposit struct {
	Amount decimal.Decimal `json:"amount"`
	Slot   int             `json:"slot"`
}

// ExcessReceipt 超额处理结果 (Output)
type ExcessReceipt struct {
	RecordID     int64               `json:"record_id"`
	ShopperFloat domain.ShopperFloat `json:"shopper_float"`
	Excess       decimal.Decimal     `json:"excess"`
	AutoDeposit  *AutoDeposit        `json:"auto_deposit,omitempty"`
	SlotsFull    bool                `json:"slots_full"`
	Payable      decimal.Decimal     `json:"payable"`
}

// ExpenseService 超额支付处理：公共开销 / 采购的记账与撤销
type ExpenseService struct {
	db     *gorm.DB // 用于开启事务
	repos  domain.Repositories
	logger *zap.Logger
	events eventlog.Sink
}

func NewExpenseService(db *gorm.DB, repos domain.Repositories, logger *zap.Logger, events eventlog.Sink) *ExpenseService {
	return &ExpenseService{
		db:     db,
		repos:  repos,
		logger: logger,
		events: events,
	}
}

// RecordCommonExpense 记公共开销，并在同一事务内处理付款人的超额部分
func (s *ExpenseService) RecordCommonExpense(ctx context.Context, in CommonExpenseInput) (*ExcessReceipt, error) {
	// 1. 基础校验
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !in.Amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if err := domain.CheckScale("amount", in.Amount, domain.AmountScale); err != nil {
		return nil, err
	}
	if in.Month.IsZero() {
		return nil, &domain.ValidationError{Field: "month", Reason: "is required"}
	}
	if !in.Preference.IsValid() {
		return nil, &domain.ValidationError{Field: "preference", Reason: string(in.Preference)}
	}

	var receipt *ExcessReceipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 2. 前置检查：月份未结账、付款人存在
		if err := ensureOpen(ctx, tx, s.repos.Months, in.Month); err != nil {
			return err
		}
		if _, err := requireMember(ctx, tx, s.repos.Members, in.PayerID); err != nil {
			return err
		}

		// 3. 人均份额按当前在册人数冻结
		members, err := s.repos.Members.ListActive(ctx, tx)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return &domain.ValidationError{Field: "members", Reason: "no active members to share the expense"}
		}
		// 份额按列精度冻结，与读回的值一致
		share := domain.RoundAmount(in.Amount.Div(decimal.NewFromInt(int64(len(members)))))

		// 4. 超额处理 (先于主记录写入)
		receipt, err = s.resolveExcess(ctx, tx, in.PayerID, in.Month, in.Amount, in.Preference)
		if err != nil {
			return err
		}

		// 5. 保存公共开销，把自动存款的位置记在行上，便于精确撤销
		expense := &domain.CommonExpense{
			Name:        name,
			Amount:      in.Amount,
			Month:       in.Month,
			PayerID:     in.PayerID,
			UserShare:   share,
			MemberCount: len(members),
			Preference:  in.Preference,
		}
		if receipt.AutoDeposit != nil {
			slot := receipt.AutoDeposit.Slot
			expense.AutoDepositAmount = receipt.AutoDeposit.Amount
			expense.AutoDepositSlot = &slot
		}
		if err := s.repos.Expenses.Create(ctx, tx, expense); err != nil {
			return err
		}
		receipt.RecordID = expense.ID

		return s.recordPayable(ctx, tx, in.PayerID, in.Month, receipt.Payable, domain.SourceCommonExpense, expense.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logReceipt("common expense recorded", "expense.recorded", in.PayerID, in.Month, receipt)
	return receipt, nil
}

// ReverseCommonExpense 删除公共开销，并把它写过的押金槽位清零
func (s *ExpenseService) ReverseCommonExpense(ctx context.Context, id int64) error {
	var expense *domain.CommonExpense
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		expense, err = s.repos.Expenses.FindByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("common expense %d: %w", id, err)
		}
		if err := ensureOpen(ctx, tx, s.repos.Months, expense.Month); err != nil {
			return err
		}
		if err := s.reverseExcess(ctx, tx, expense.PayerID, expense.Month, expense.AutoDepositSlot, domain.SourceCommonExpense, expense.ID); err != nil {
			return err
		}
		return s.repos.Expenses.Delete(ctx, tx, expense.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("common expense reversed",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("payer_id", expense.PayerID),
		zap.String("month", expense.Month.String()),
	)
	s.events.Log(eventlog.NewEvent(
		eventlog.WithType("expense.reversed"),
		eventlog.WithData(map[string]any{
			"expense_id": expense.ID,
			"payer_id":   expense.PayerID,
			"month":      expense.Month.String(),
			"slot":       expense.AutoDepositSlot,
		}),
	))
	return nil
}

// RecordPurchase 记采购，超额部分按采购人的偏好处理
func (s *ExpenseService) RecordPurchase(ctx context.Context, in PurchaseInput) (*ExcessReceipt, error) {
	if in.Amount.IsNegative() {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if err := domain.CheckScale("amount", in.Amount, domain.AmountScale); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, &domain.ValidationError{Field: "date", Reason: "is required"}
	}
	if !in.Preference.IsValid() {
		return nil, &domain.ValidationError{Field: "preference", Reason: string(in.Preference)}
	}
	date := domain.DateOf(in.Date)
	month := domain.MonthOf(date)

	var receipt *ExcessReceipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpen(ctx, tx, s.repos.Months, month); err != nil {
			return err
		}
		if _, err := requireMember(ctx, tx, s.repos.Members, in.BuyerID); err != nil {
			return err
		}

		var err error
		receipt, err = s.resolveExcess(ctx, tx, in.BuyerID, month, in.Amount, in.Preference)
		if err != nil {
			return err
		}

		purchase := &domain.ShoppingPurchase{
			BuyerID:    in.BuyerID,
			Amount:     in.Amount,
			Date:       date,
			Preference: in.Preference,
			Note:       in.Note,
		}
		if receipt.AutoDeposit != nil {
			slot := receipt.AutoDeposit.Slot
			purchase.AutoDepositAmount = receipt.AutoDeposit.Amount
			purchase.AutoDepositSlot = &slot
		}
		if err := s.repos.Purchases.Create(ctx, tx, purchase); err != nil {
			return err
		}
		receipt.RecordID = purchase.ID

		return s.recordPayable(ctx, tx, in.BuyerID, month, receipt.Payable, domain.SourcePurchase, purchase.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logReceipt("purchase recorded", "purchase.recorded", in.BuyerID, month, receipt)
	return receipt, nil
}

// ReversePurchase 删除采购记录并撤销其自动存款
func (s *ExpenseService) ReversePurchase(ctx context.Context, id int64) error {
	var purchase *domain.ShoppingPurchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		purchase, err = s.repos.Purchases.FindByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("purchase %d: %w", id, err)
		}
		month := domain.MonthOf(purchase.Date)
		if err := ensureOpen(ctx, tx, s.repos.Months, month); err != nil {
			return err
		}
		if err := s.reverseExcess(ctx, tx, purchase.BuyerID, month, purchase.AutoDepositSlot, domain.SourcePurchase, purchase.ID); err != nil {
			return err
		}
		return s.repos.Purchases.Delete(ctx, tx, purchase.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("purchase reversed", zap.Int64("purchase_id", purchase.ID), zap.Int64("buyer_id", purchase.BuyerID))
	s.events.Log(eventlog.NewEvent(
		eventlog.WithType("purchase.reversed"),
		eventlog.WithData(map[string]any{
			"purchase_id": purchase.ID,
			"buyer_id":    purchase.BuyerID,
			"slot":        purchase.AutoDepositSlot,
		}),
	))
	return nil
}

// RecordTransfer 记一笔拨款 (正数经理 -> 采购人，负数反向)
func (s *ExpenseService) RecordTransfer(ctx context.Context, in TransferInput) (*domain.FundTransfer, error) {
	if in.Amount.IsZero() {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must not be zero"}
	}
	if err := domain.CheckScale("amount", in.Amount, domain.AmountScale); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, &domain.ValidationError{Field: "date", Reason: "is required"}
	}
	date := domain.DateOf(in.Date)

	t := &domain.FundTransfer{BuyerID: in.BuyerID, Amount: in.Amount, Date: date, Note: in.Note}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureOpen(ctx, tx, s.repos.Months, domain.MonthOf(date)); err != nil {
			return err
		}
		if _, err := requireMember(ctx, tx, s.repos.Members, in.BuyerID); err != nil {
			return err
		}
		return s.repos.Transfers.Create(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTransfer 删除拨款
func (s *ExpenseService) DeleteTransfer(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.repos.Transfers.FindByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("transfer %d: %w", id, err)
		}
		if err := ensureOpen(ctx, tx, s.repos.Months, domain.MonthOf(t.Date)); err != nil {
			return err
		}
		return s.repos.Transfers.Delete(ctx, tx, id)
	})
}

// ---------------------------------------------------------

// resolveExcess 决定超额部分的去向并写押金槽位
// 先锁住付款人当月的押金行，再读备用金：同一 (member, month) 的读-改-写互斥
func (s *ExpenseService) resolveExcess(ctx context.Context, tx *gorm.DB, memberID int64, month domain.Month, amount decimal.Decimal, pref domain.PaymentPreference) (*ExcessReceipt, error) {
	// 1. 无论偏好如何都先建行再加锁，锁一直持有到事务结束
	if err := s.repos.Deposits.CreateIfAbsent(ctx, tx, memberID, month); err != nil {
		return nil, fmt.Errorf("create deposit record: %w", err)
	}
	deposit, err := s.repos.Deposits.FindForUpdate(ctx, tx, memberID, month)
	if err != nil {
		return nil, fmt.Errorf("lock deposit record: %w", err)
	}

	// 2. 持锁读取备用金
	float, err := loadShopperFloat(ctx, tx, s.repos, memberID, month)
	if err != nil {
		return nil, err
	}
	decision := domain.ResolveExcess(amount, float, pref, deposit)

	receipt := &ExcessReceipt{
		ShopperFloat: float,
		Excess:       decision.Excess,
		SlotsFull:    decision.SlotsFull,
		Payable:      decision.Payable,
	}
	if !decision.HasAutoDeposit() {
		if decision.SlotsFull {
			s.logger.Warn("all deposit slots occupied, auto-deposit skipped",
				zap.Int64("member_id", memberID),
				zap.String("month", month.String()),
				zap.String("excess", decision.Excess.String()),
			)
		}
		return receipt, nil
	}

	slot := *decision.AutoDepositSlot
	if _, err := writeDeposit(ctx, tx, s.repos.Deposits, memberID, month, domain.SlotUpdate(slot, decision.AutoDepositAmount)); err != nil {
		return nil, fmt.Errorf("auto-deposit into slot d%d: %w", slot, err)
	}
	receipt.AutoDeposit = &AutoDeposit{Amount: decision.AutoDepositAmount, Slot: slot}
	return receipt, nil
}

// reverseExcess 撤销：清零记录过的槽位 (不做减法)，删除应还款
func (s *ExpenseService) reverseExcess(ctx context.Context, tx *gorm.DB, memberID int64, month domain.Month, slot *int, kind domain.SourceKind, sourceID int64) error {
	if slot != nil {
		deposit, err := s.repos.Deposits.FindForUpdate(ctx, tx, memberID, month)
		if err != nil {
			return err
		}
		// 押金记录已被删除时无需清零
		if deposit != nil {
			if err := s.repos.Deposits.ApplyUpdate(ctx, tx, deposit.ID, deposit.Version, domain.ClearSlot(*slot)); err != nil {
				return fmt.Errorf("clear slot d%d: %w", *slot, err)
			}
		}
	}
	if err := s.repos.Payables.DeleteBySource(ctx, tx, kind, sourceID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *ExpenseService) recordPayable(ctx context.Context, tx *gorm.DB, memberID int64, month domain.Month, amount decimal.Decimal, kind domain.SourceKind, sourceID int64) error {
	if !amount.IsPositive() {
		return nil
	}
	return s.repos.Payables.Create(ctx, tx, &domain.ManagerPayable{
		MemberID:   memberID,
		Month:      month,
		Amount:     amount,
		SourceKind: kind,
		SourceID:   sourceID,
	})
}

func (s *ExpenseService) logReceipt(msg, eventType string, memberID int64, month domain.Month, r *ExcessReceipt) {
	fields := []zap.Field{
		zap.Int64("record_id", r.RecordID),
		zap.Int64("member_id", memberID),
		zap.String("month", month.String()),
		zap.String("float", r.ShopperFloat.Float.String()),
		zap.String("excess", r.Excess.String()),
	}
	data := map[string]any{
		"record_id": r.RecordID,
		"member_id": memberID,
		"month":     month.String(),
		"excess":    r.Excess.String(),
		"payable":   r.Payable.String(),
	}
	if r.AutoDeposit != nil {
		fields = append(fields, zap.Int("slot", r.AutoDeposit.Slot), zap.String("auto_deposit", r.AutoDeposit.Amount.String()))
		data["slot"] = r.AutoDeposit.Slot
		data["auto_deposit"] = r.AutoDeposit.Amount.String()
	}
	s.logger.Info(msg, fields...)
	s.events.Log(eventlog.NewEvent(eventlog.WithType(eventType), eventlog.WithData(data)))
}
