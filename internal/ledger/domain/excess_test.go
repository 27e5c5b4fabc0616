package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeShopperFloat(t *testing.T) {
	f := ComputeShopperFloat(1,
		[]FundTransfer{{BuyerID: 1, Amount: d("2000")}, {BuyerID: 1, Amount: d("-300")}, {BuyerID: 2, Amount: d("999")}},
		[]ShoppingPurchase{{BuyerID: 1, Amount: d("1200")}, {BuyerID: 2, Amount: d("50")}},
		[]CommonExpense{{PayerID: 1, UserShare: d("100")}, {PayerID: 3, UserShare: d("70")}},
	)
	require.True(t, f.Transfers.Equal(d("1700")))
	require.True(t, f.Purchases.Equal(d("1200")))
	require.True(t, f.CommonShares.Equal(d("100")))
	require.True(t, f.Float.Equal(d("400")))
}

func TestResolveExcess_NoExcess(t *testing.T) {
	dec := ResolveExcess(d("300"), ShopperFloat{Float: d("500")}, PreferDeposit, nil)
	require.True(t, dec.Excess.Equal(d("-200")))
	require.False(t, dec.HasAutoDeposit())
	require.False(t, dec.CreateRecord)
	require.True(t, dec.Payable.IsZero())
}

func TestResolveExcess_DepositWithoutRecord(t *testing.T) {
	dec := ResolveExcess(d("300"), ShopperFloat{}, PreferDeposit, nil)
	require.True(t, dec.HasAutoDeposit())
	require.True(t, dec.CreateRecord)
	require.Equal(t, 1, *dec.AutoDepositSlot)
	require.True(t, dec.AutoDepositAmount.Equal(d("300")))
}

func TestResolveExcess_SlotOrder(t *testing.T) {
	rec := &DepositRecord{D1: d("1000"), D2: d("1000")}
	dec := ResolveExcess(d("300"), ShopperFloat{}, PreferDeposit, rec)
	require.True(t, dec.HasAutoDeposit())
	require.False(t, dec.CreateRecord)
	require.Equal(t, 3, *dec.AutoDepositSlot)

	// d3 被占用时跳到 d4，中间的空位优先
	rec = &DepositRecord{D1: d("1"), D3: d("1")}
	dec = ResolveExcess(d("10"), ShopperFloat{}, PreferDeposit, rec)
	require.Equal(t, 2, *dec.AutoDepositSlot)
}

func TestResolveExcess_SlotsFull(t *testing.T) {
	rec := &DepositRecord{}
	var full DepositSlots
	for i := range full {
		full[i] = d("10")
	}
	rec.setSlots(full)

	dec := ResolveExcess(d("300"), ShopperFloat{Float: d("100")}, PreferDeposit, rec)
	require.True(t, dec.SlotsFull)
	require.False(t, dec.HasAutoDeposit())
	require.True(t, dec.Excess.Equal(d("200")))
}

func TestResolveExcess_Payback(t *testing.T) {
	dec := ResolveExcess(d("300"), ShopperFloat{Float: d("120")}, PreferPayback, nil)
	require.False(t, dec.HasAutoDeposit())
	require.True(t, dec.Payable.Equal(d("180")))
}

func TestResolveExcess_NoPreference(t *testing.T) {
	dec := ResolveExcess(d("300"), ShopperFloat{}, "", nil)
	require.True(t, dec.Excess.Equal(d("300")))
	require.False(t, dec.HasAutoDeposit())
	require.True(t, dec.Payable.Equal(decimal.Zero))
}
