package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SettlementInput 已按范围筛选好的账本快照
// 计算器本身不做任何日期筛选，选行是调用方的事
type SettlementInput struct {
	Members        []Member
	Meals          []MealRecord
	Purchases      []ShoppingPurchase
	CommonExpenses []CommonExpense
	Deposits       []DepositRecord
}

// MemberSettlement 单个成员的餐费 / 押金头寸
type MemberSettlement struct {
	MemberID    int64           `json:"member_id"`
	Name        string          `json:"name"`
	TotalWeight decimal.Decimal `json:"total_weight"`
	MealCost    decimal.Decimal `json:"meal_cost"`
	RawDeposit  decimal.Decimal `json:"raw_deposit"`
	CommonShare decimal.Decimal `json:"common_share"`
	NetDeposit  decimal.Decimal `json:"net_deposit"`
	// MealBalance = NetDeposit - MealCost，与采购人备用金 (ShopperFloat) 是两个概念
	MealBalance decimal.Decimal `json:"meal_balance"`
}

// SettlementTotals 页脚 / 报表合计
type SettlementTotals struct {
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	TotalWeight    decimal.Decimal `json:"total_weight"`
	MealCost       decimal.Decimal `json:"meal_cost"`
	RawDeposit     decimal.Decimal `json:"raw_deposit"`
	CommonShare    decimal.Decimal `json:"common_share"`
	NetDeposit     decimal.Decimal `json:"net_deposit"`
	MealBalance    decimal.Decimal `json:"meal_balance"`
}

// Settlement 计算结果
type Settlement struct {
	MealRate  decimal.Decimal    `json:"meal_rate"`
	PerMember []MemberSettlement `json:"per_member"`
	Totals    SettlementTotals   `json:"totals"`
}

// Member 按 ID 查找
func (s Settlement) Member(id int64) (MemberSettlement, bool) {
	for _, m := range s.PerMember {
		if m.MemberID == id {
			return m, true
		}
	}
	return MemberSettlement{}, false
}

// ComputeSettlement 纯函数：餐费率、每人餐费、净押金、余额
// 全程使用 decimal 累加，只在展示时取整
func ComputeSettlement(in SettlementInput) Settlement {
	// 1. 采购总额 & 总餐量
	totalPurchase := decimal.Zero
	for _, p := range in.Purchases {
		totalPurchase = totalPurchase.Add(p.Amount)
	}

	totalWeight := decimal.Zero
	weightByMember := make(map[int64]decimal.Decimal)
	for _, r := range in.Meals {
		totalWeight = totalWeight.Add(r.Weight)
		weightByMember[r.MemberID] = weightByMember[r.MemberID].Add(r.Weight)
	}

	// 2. 餐费率：总餐量为 0 时定义为 0，不报错
	mealRate := decimal.Zero
	if totalWeight.IsPositive() {
		mealRate = totalPurchase.Div(totalWeight)
	}

	// 3. 公共开销：每人承担每一笔的冻结份额，与谁付款无关
	commonShare := decimal.Zero
	for _, e := range in.CommonExpenses {
		commonShare = commonShare.Add(e.UserShare)
	}

	depositByMember := make(map[int64]decimal.Decimal)
	for i := range in.Deposits {
		d := &in.Deposits[i]
		depositByMember[d.MemberID] = depositByMember[d.MemberID].Add(d.Total())
	}

	// 4. 逐人计算
	out := Settlement{
		MealRate:  mealRate,
		PerMember: make([]MemberSettlement, 0, len(in.Members)),
		Totals:    SettlementTotals{PurchaseAmount: totalPurchase},
	}
	for _, m := range in.Members {
		weight := weightByMember[m.ID]
		mealCost := mealRate.Mul(weight)
		raw := depositByMember[m.ID]
		net := raw.Sub(commonShare)

		out.PerMember = append(out.PerMember, MemberSettlement{
			MemberID:    m.ID,
			Name:        m.Name,
			TotalWeight: weight,
			MealCost:    mealCost,
			RawDeposit:  raw,
			CommonShare: commonShare,
			NetDeposit:  net,
			MealBalance: net.Sub(mealCost),
		})
	}

	sort.SliceStable(out.PerMember, func(i, j int) bool {
		a, b := out.PerMember[i], out.PerMember[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.MemberID < b.MemberID
	})

	// 5. 合计
	t := &out.Totals
	for _, m := range out.PerMember {
		t.TotalWeight = t.TotalWeight.Add(m.TotalWeight)
		t.MealCost = t.MealCost.Add(m.MealCost)
		t.RawDeposit = t.RawDeposit.Add(m.RawDeposit)
		t.CommonShare = t.CommonShare.Add(m.CommonShare)
		t.NetDeposit = t.NetDeposit.Add(m.NetDeposit)
		t.MealBalance = t.MealBalance.Add(m.MealBalance)
	}

	return out
}
