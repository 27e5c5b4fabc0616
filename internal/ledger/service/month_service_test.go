package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxz807/messledger/internal/ledger/domain"
)

func TestCloseMonth_CarryForwardKeepsExistingSlots(t *testing.T) {
	f := newFixture(t)
	a, b, _ := household(t, f)

	// 二月已经手工录入 d1=500
	_, err := f.deposits.SetSlot(f.ctx, a.ID, feb, 1, dec("500"))
	require.NoError(t, err)

	result, err := f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)
	require.Equal(t, jan, result.Month)
	require.Equal(t, a.ID, result.ClosedBy)
	requireDec(t, "60", result.Settlement.MealRate)

	next := f.deposit(t, a.ID, feb)
	requireDec(t, "500", next.D1)
	requireDec(t, "800", next.CarryForward)
	requireDec(t, "1300", next.Total())

	// 没有押金记录的成员会新建一行，负余额照样结转
	nb := f.deposit(t, b.ID, feb)
	requireDec(t, "-900", nb.CarryForward)
	require.True(t, nb.D1.IsZero())

	st, err := f.months.Status(f.ctx, jan)
	require.NoError(t, err)
	require.True(t, st.IsClosed)
	require.NotNil(t, st.ClosedBy)
	require.Equal(t, a.ID, *st.ClosedBy)
	require.Contains(t, f.events.types(), "month.closed")
}

func TestCloseMonth_Idempotent(t *testing.T) {
	f := newFixture(t)
	a, _, c := household(t, f)

	_, err := f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)
	first := f.deposit(t, c.ID, feb)

	_, err = f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)
	second := f.deposit(t, c.ID, feb)

	require.True(t, first.CarryForward.Equal(second.CarryForward))
	requireDec(t, "-900", second.CarryForward) // 采购不算押金

	s, err := f.settlement.Compute(f.ctx, feb)
	require.NoError(t, err)
	mc, _ := s.Member(c.ID)
	require.True(t, mc.RawDeposit.Equal(second.CarryForward))
}

func TestClosedMonthRejectsWrites(t *testing.T) {
	f := newFixture(t)
	a, b, _ := household(t, f)

	_, err := f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)

	var conflict *domain.ConflictError

	_, err = f.expenses.RecordPurchase(f.ctx, PurchaseInput{BuyerID: b.ID, Amount: dec("10"), Date: janDay(30)})
	require.ErrorAs(t, err, &conflict)
	require.ErrorIs(t, err, domain.ErrMonthClosed)

	_, err = f.expenses.RecordCommonExpense(f.ctx, CommonExpenseInput{Name: "x", Amount: dec("10"), Month: jan, PayerID: a.ID})
	require.ErrorIs(t, err, domain.ErrMonthClosed)

	_, err = f.deposits.SetSlot(f.ctx, a.ID, jan, 3, dec("10"))
	require.ErrorIs(t, err, domain.ErrMonthClosed)

	results, err := f.batches.BulkUpdateMeals(f.ctx, []MealWeightUpdate{
		{MemberID: b.ID, Date: janDay(30), Slot: domain.Lunch, Weight: dec("1")},
	})
	var batch *domain.BatchError
	require.ErrorAs(t, err, &batch)
	require.ErrorIs(t, results[0].Err, domain.ErrMonthClosed)

	// 下个月不受影响
	_, err = f.expenses.RecordPurchase(f.ctx, PurchaseInput{BuyerID: b.ID, Amount: dec("10"), Date: feb.Start()})
	require.NoError(t, err)

	// 重开后可以再次写入
	require.NoError(t, f.months.OpenMonth(f.ctx, jan, a.ID))
	_, err = f.expenses.RecordPurchase(f.ctx, PurchaseInput{BuyerID: b.ID, Amount: dec("10"), Date: janDay(30)})
	require.NoError(t, err)

	st, err := f.months.Status(f.ctx, jan)
	require.NoError(t, err)
	require.False(t, st.IsClosed)
	require.NotNil(t, st.ClosedAt, "reopening keeps the last close time")
	require.Contains(t, f.events.types(), "month.opened")
}

func TestReopenDoesNotUndoCarryForward(t *testing.T) {
	f := newFixture(t)
	a, _, _ := household(t, f)

	_, err := f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)
	require.NoError(t, f.months.OpenMonth(f.ctx, jan, a.ID))
	requireDec(t, "800", f.deposit(t, a.ID, feb).CarryForward)

	// 改动数据后重新结账刷新结转
	_, err = f.deposits.SetSlot(f.ctx, a.ID, jan, 3, dec("200"))
	require.NoError(t, err)
	_, err = f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)
	requireDec(t, "1000", f.deposit(t, a.ID, feb).CarryForward)
}

func TestCloseMonth_Forbidden(t *testing.T) {
	f := newFixture(t)
	_, b, _ := household(t, f)

	_, err := f.months.CloseMonth(f.ctx, jan, b.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	require.ErrorIs(t, f.months.OpenMonth(f.ctx, jan, b.ID), domain.ErrForbidden)

	_, err = f.months.CloseMonth(f.ctx, jan, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// 没有任何写入
	st, err := f.months.Status(f.ctx, jan)
	require.NoError(t, err)
	require.False(t, st.IsClosed)
	rec, err := f.repos.Deposits.FindForUpdate(f.ctx, nil, b.ID, feb)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestCloseMonth_NextMonthClosed(t *testing.T) {
	f := newFixture(t)
	a, _, _ := household(t, f)

	_, err := f.months.CloseMonth(f.ctx, feb, a.ID)
	require.NoError(t, err)

	var conflict *domain.ConflictError
	_, err = f.months.CloseMonth(f.ctx, jan, a.ID)
	require.ErrorAs(t, err, &conflict)

	_, err = f.months.CloseMonth(f.ctx, domain.NewMonth(2023, time.November), a.ID)
	require.NoError(t, err)
	_, err = f.months.CloseMonth(f.ctx, domain.NewMonth(2023, time.December), a.ID)
	require.NoError(t, err)
	require.ErrorAs(t, f.months.OpenMonth(f.ctx, domain.NewMonth(2023, time.November), a.ID), &conflict)
}

func TestOpenMonth_NotClosedIsNoop(t *testing.T) {
	f := newFixture(t)
	a := f.member(t, "A", domain.RoleSuperAdmin)

	require.NoError(t, f.months.OpenMonth(f.ctx, jan, a.ID))
	require.NotContains(t, f.events.types(), "month.opened")
}

func TestCloseMonth_NoMembers(t *testing.T) {
	f := newFixture(t)
	// 操作人存在但已离开
	admin := domain.NewMember("gone", domain.RoleAdmin)
	admin.Active = false
	require.NoError(t, f.repos.Members.Create(f.ctx, nil, admin))

	_, err := f.months.CloseMonth(f.ctx, jan, admin.ID)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCloseMonth_CarryForwardStoredAtColumnScale(t *testing.T) {
	f := newFixture(t)
	a := f.member(t, "A", domain.RoleAdmin)
	b := f.member(t, "B", domain.RoleViewer)
	c := f.member(t, "C", domain.RoleViewer)

	// 餐费率 100/3，余额是无限小数
	f.meals(t,
		MealWeightUpdate{MemberID: a.ID, Date: janDay(5), Slot: domain.Lunch, Weight: dec("1")},
		MealWeightUpdate{MemberID: b.ID, Date: janDay(5), Slot: domain.Lunch, Weight: dec("1")},
		MealWeightUpdate{MemberID: c.ID, Date: janDay(5), Slot: domain.Lunch, Weight: dec("1")},
	)
	f.purchase(t, a.ID, "100", janDay(5))

	result, err := f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)
	require.Len(t, result.CarryForwards, 3)

	feb2, err := f.settlement.Compute(f.ctx, feb)
	require.NoError(t, err)
	for _, cf := range result.CarryForwards {
		janRow, _ := result.Settlement.Member(cf.MemberID)
		requireDec(t, domain.RoundAmount(janRow.MealBalance).String(), cf.Amount)
		requireDec(t, "-33.3333", cf.Amount, "member %d", cf.MemberID)

		stored := f.deposit(t, cf.MemberID, feb)
		requireDec(t, cf.Amount.String(), stored.CarryForward, "member %d", cf.MemberID)

		febRow, ok := feb2.Member(cf.MemberID)
		require.True(t, ok)
		requireDec(t, cf.Amount.String(), febRow.RawDeposit, "member %d", cf.MemberID)
	}
}

func TestCloseMonth_EventsCarryActor(t *testing.T) {
	f := newFixture(t)
	a, _, _ := household(t, f)

	_, err := f.months.CloseMonth(f.ctx, jan, a.ID)
	require.NoError(t, err)
	require.NoError(t, f.months.OpenMonth(f.ctx, jan, a.ID))

	for _, typ := range []string{"month.closed", "month.opened"} {
		e, ok := f.events.last(typ)
		require.True(t, ok, typ)
		require.Equal(t, a.ID, e.Metadata["actor_id"], typ)
	}
}
