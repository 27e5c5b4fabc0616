package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// 与列定义保持一致：金额 decimal(20,4)，餐量 decimal(10,2)
const (
	AmountScale int32 = 4
	WeightScale int32 = 2
)

// RoundAmount 写库前把派生金额 (份额 / 结转) 归一到列精度
// 读回的值与内存中的值必须完全相等
func RoundAmount(v decimal.Decimal) decimal.Decimal {
	return v.Round(AmountScale)
}

// CheckScale 输入的小数位不能超过列精度，超出直接拒绝，不做隐式截断
func CheckScale(field string, v decimal.Decimal, scale int32) error {
	if !v.Equal(v.Round(scale)) {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%s has more than %d decimal places", v, scale)}
	}
	return nil
}
