package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xxz807/messledger/internal/ledger/adapter/repo"
	"github.com/xxz807/messledger/internal/ledger/domain"
	"github.com/xxz807/messledger/internal/platform/eventlog"
)

// recordingSink 同步记录事件，便于断言
type recordingSink struct {
	mu     sync.Mutex
	events []eventlog.Event
}

func (s *recordingSink) Log(e eventlog.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// last 最近一条指定类型的事件
func (s *recordingSink) last(eventType string) (eventlog.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == eventType {
			return s.events[i], true
		}
	}
	return eventlog.Event{}, false
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ctx        context.Context
	db         *gorm.DB
	repos      domain.Repositories
	events     *recordingSink
	members    *MemberService
	settlement *SettlementService
	expenses   *ExpenseService
	deposits   *DepositService
	batches    *BatchService
	months     *MonthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	// 每个测试独立的内存库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := zaptest.NewLogger(t)
	repos := repo.NewRepositories(db)
	events := &recordingSink{}
	return &fixture{
		ctx:        context.Background(),
		db:         db,
		repos:      repos,
		events:     events,
		members:    NewMemberService(repos, log),
		settlement: NewSettlementService(db, repos, log),
		expenses:   NewExpenseService(db, repos, log, events),
		deposits:   NewDepositService(db, repos, log),
		batches:    NewBatchService(db, repos, log, events),
		months:     NewMonthService(db, repos, log, events),
	}
}

func (f *fixture) member(t *testing.T, name string, role domain.Role) *domain.Member {
	t.Helper()
	m, err := f.members.Register(f.ctx, name, role)
	require.NoError(t, err)
	return m
}

func (f *fixture) deposit(t *testing.T, memberID int64, month domain.Month) *domain.DepositRecord {
	t.Helper()
	d, err := f.deposits.Get(f.ctx, memberID, month)
	require.NoError(t, err)
	return d
}

func (f *fixture) meals(t *testing.T, updates ...MealWeightUpdate) {
	t.Helper()
	_, err := f.batches.BulkUpdateMeals(f.ctx, updates)
	require.NoError(t, err)
}

func (f *fixture) purchase(t *testing.T, buyerID int64, amount string, date time.Time) *ExcessReceipt {
	t.Helper()
	r, err := f.expenses.RecordPurchase(f.ctx, PurchaseInput{BuyerID: buyerID, Amount: dec(amount), Date: date})
	require.NoError(t, err)
	return r
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	jan = domain.NewMonth(2024, time.January)
	feb = domain.NewMonth(2024, time.February)
)

func janDay(n int) time.Time { return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC) }

func requireDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

// household 3 人：A (admin) B C，采购 3000，餐量 20/15/15，A 押金 d1=d2=1000
func household(t *testing.T, f *fixture) (a, b, c *domain.Member) {
	t.Helper()
	a = f.member(t, "A", domain.RoleAdmin)
	b = f.member(t, "B", domain.RoleViewer)
	c = f.member(t, "C", domain.RoleViewer)

	f.meals(t,
		MealWeightUpdate{MemberID: a.ID, Date: janDay(2), Slot: domain.Lunch, Weight: dec("12")},
		MealWeightUpdate{MemberID: a.ID, Date: janDay(2), Slot: domain.Dinner, Weight: dec("8")},
		MealWeightUpdate{MemberID: b.ID, Date: janDay(3), Slot: domain.Lunch, Weight: dec("15")},
		MealWeightUpdate{MemberID: c.ID, Date: janDay(20), Slot: domain.Dinner, Weight: dec("15")},
	)
	f.purchase(t, b.ID, "1800", janDay(2))
	f.purchase(t, c.ID, "1200", janDay(20))

	_, err := f.deposits.SetSlot(f.ctx, a.ID, jan, 1, dec("1000"))
	require.NoError(t, err)
	_, err = f.deposits.SetSlot(f.ctx, a.ID, jan, 2, dec("1000"))
	require.NoError(t, err)
	return a, b, c
}
