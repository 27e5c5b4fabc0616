package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// UtilityPosition 某成员在某类别下的应缴 / 已缴
type UtilityPosition struct {
	Category UtilityCategory `json:"category"`
	Share    decimal.Decimal `json:"share"`
	Paid     decimal.Decimal `json:"paid"`
	Due      decimal.Decimal `json:"due"` // Share - Paid，负数表示多缴
}

// MemberUtility 成员的公共事业汇总
type MemberUtility struct {
	MemberID  int64             `json:"member_id"`
	Name      string            `json:"name"`
	Positions []UtilityPosition `json:"positions"`
	Share     decimal.Decimal   `json:"share"`
	Paid      decimal.Decimal   `json:"paid"`
	Due       decimal.Decimal   `json:"due"`
}

// CategoryUtility 某类别的账单与收缴情况
type CategoryUtility struct {
	Category UtilityCategory `json:"category"`
	Bill     decimal.Decimal `json:"bill"`
	PerHead  decimal.Decimal `json:"per_head"`
	Paid     decimal.Decimal `json:"paid"`
}

// UtilitySummary 当月公共事业分摊结果
type UtilitySummary struct {
	Categories []CategoryUtility `json:"categories"`
	Members    []MemberUtility   `json:"members"`
	TotalBill  decimal.Decimal   `json:"total_bill"`
	TotalPaid  decimal.Decimal   `json:"total_paid"`
}

// ComputeUtilitySummary 账单按在册人数平分，减去各自已缴
// members 为空时所有人头份额为 0
func ComputeUtilitySummary(members []Member, bills []UtilityBill, contributions []UtilityContribution) UtilitySummary {
	billByCategory := make(map[UtilityCategory]decimal.Decimal)
	for _, b := range bills {
		billByCategory[b.Category] = billByCategory[b.Category].Add(b.Amount)
	}

	type paidKey struct {
		member   int64
		category UtilityCategory
	}
	paid := make(map[paidKey]decimal.Decimal)
	paidByCategory := make(map[UtilityCategory]decimal.Decimal)
	for _, c := range contributions {
		k := paidKey{member: c.MemberID, category: c.Category}
		paid[k] = paid[k].Add(c.Amount)
		paidByCategory[c.Category] = paidByCategory[c.Category].Add(c.Amount)
	}

	heads := decimal.NewFromInt(int64(len(members)))
	var out UtilitySummary
	for _, cat := range UtilityCategories {
		bill := billByCategory[cat]
		perHead := decimal.Zero
		if len(members) > 0 {
			perHead = bill.Div(heads)
		}
		out.Categories = append(out.Categories, CategoryUtility{
			Category: cat,
			Bill:     bill,
			PerHead:  perHead,
			Paid:     paidByCategory[cat],
		})
		out.TotalBill = out.TotalBill.Add(bill)
		out.TotalPaid = out.TotalPaid.Add(paidByCategory[cat])
	}

	for _, m := range members {
		mu := MemberUtility{MemberID: m.ID, Name: m.Name}
		for _, c := range out.Categories {
			p := paid[paidKey{member: m.ID, category: c.Category}]
			pos := UtilityPosition{Category: c.Category, Share: c.PerHead, Paid: p, Due: c.PerHead.Sub(p)}
			mu.Positions = append(mu.Positions, pos)
			mu.Share = mu.Share.Add(pos.Share)
			mu.Paid = mu.Paid.Add(pos.Paid)
			mu.Due = mu.Due.Add(pos.Due)
		}
		out.Members = append(out.Members, mu)
	}
	sort.SliceStable(out.Members, func(i, j int) bool {
		if out.Members[i].Name != out.Members[j].Name {
			return out.Members[i].Name < out.Members[j].Name
		}
		return out.Members[i].MemberID < out.Members[j].MemberID
	})
	return out
}
