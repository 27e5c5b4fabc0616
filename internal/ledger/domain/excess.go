package domain

import (
	"github.com/shopspring/decimal"
)

// ShopperFloat 采购人手头的现金
// = 收到的拨款 - 已花的采购款 - 作为付款人承担的公共开销份额
// 与 MemberSettlement.MealBalance 无关，不要混用
type ShopperFloat struct {
	MemberID     int64           `json:"member_id"`
	Transfers    decimal.Decimal `json:"transfers"`
	Purchases    decimal.Decimal `json:"purchases"`
	CommonShares decimal.Decimal `json:"common_shares"`
	Float        decimal.Decimal `json:"float"`
}

// ComputeShopperFloat 根据当月的拨款、采购、公共开销计算某人的备用金
func ComputeShopperFloat(memberID int64, transfers []FundTransfer, purchases []ShoppingPurchase, expenses []CommonExpense) ShopperFloat {
	f := ShopperFloat{MemberID: memberID}
	for _, t := range transfers {
		if t.BuyerID == memberID {
			f.Transfers = f.Transfers.Add(t.Amount)
		}
	}
	for _, p := range purchases {
		if p.BuyerID == memberID {
			f.Purchases = f.Purchases.Add(p.Amount)
		}
	}
	for _, e := range expenses {
		if e.PayerID == memberID {
			f.CommonShares = f.CommonShares.Add(e.UserShare)
		}
	}
	f.Float = f.Transfers.Sub(f.Purchases).Sub(f.CommonShares)
	return f
}

// ExcessDecision 超额支付的处理结论
type ExcessDecision struct {
	// Excess = 支出金额 - 备用金，可能为负
	Excess decimal.Decimal
	// 自动存款：写入 AutoDepositSlot (1..8)，CreateRecord 表示当月还没有押金记录
	AutoDepositAmount decimal.Decimal
	AutoDepositSlot   *int
	CreateRecord      bool
	// SlotsFull 偏好为 deposit 且有超额，但 8 个槽位都已占用
	SlotsFull bool
	// Payable 偏好为 payback 时经理应还的金额
	Payable decimal.Decimal
}

// HasAutoDeposit 是否需要写押金槽位
func (d ExcessDecision) HasAutoDeposit() bool {
	return d.AutoDepositSlot != nil
}

// ResolveExcess 决定超额部分进押金还是记为经理应还款
// deposit 为付款人当月的押金记录，没有则传 nil
func ResolveExcess(amount decimal.Decimal, float ShopperFloat, pref PaymentPreference, deposit *DepositRecord) ExcessDecision {
	d := ExcessDecision{Excess: amount.Sub(float.Float)}
	if !d.Excess.IsPositive() {
		return d
	}

	switch pref {
	case PreferPayback:
		d.Payable = d.Excess
	case PreferDeposit:
		slot := 1
		if deposit == nil {
			d.CreateRecord = true
		} else {
			var ok bool
			slot, ok = deposit.FirstEmptySlot()
			if !ok {
				d.SlotsFull = true
				return d
			}
		}
		d.AutoDepositAmount = d.Excess
		d.AutoDepositSlot = &slot
	}
	return d
}
