package domain

// Role 成员角色
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsValid 校验角色合法性
func (r Role) IsValid() bool {
	return r == RoleViewer || r == RoleAdmin || r == RoleSuperAdmin
}

// CanCloseMonth 是否有权结账 / 重开月份
func (r Role) CanCloseMonth() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// MealSlot 餐次
type MealSlot string

const (
	Lunch  MealSlot = "lunch"
	Dinner MealSlot = "dinner"
)

// IsValid 校验餐次
func (s MealSlot) IsValid() bool {
	return s == Lunch || s == Dinner
}

// PaymentPreference 超额支付的处理方式
// 付款人手头备用金 (shopper float) 不够覆盖的部分：转存押金 或 记为经理应还款
type PaymentPreference string

const (
	PreferDeposit PaymentPreference = "deposit"
	PreferPayback PaymentPreference = "payback"
)

// IsValid 空值合法：等同于不做任何处理
func (p PaymentPreference) IsValid() bool {
	return p == "" || p == PreferDeposit || p == PreferPayback
}

// UtilityCategory 固定的公共事业类别
type UtilityCategory string

const (
	UtilityElectricity UtilityCategory = "electricity"
	UtilityGas         UtilityCategory = "gas"
	UtilityWater       UtilityCategory = "water"
	UtilityInternet    UtilityCategory = "internet"
	UtilityMaid        UtilityCategory = "maid"
)

// UtilityCategories 有序的类别集合
var UtilityCategories = []UtilityCategory{
	UtilityElectricity,
	UtilityGas,
	UtilityWater,
	UtilityInternet,
	UtilityMaid,
}

func (c UtilityCategory) IsValid() bool {
	for _, v := range UtilityCategories {
		if v == c {
			return true
		}
	}
	return false
}

// SourceKind 应还款 / 自动存款的来源记录类型
type SourceKind string

const (
	SourceCommonExpense SourceKind = "common_expense"
	SourcePurchase      SourceKind = "purchase"
)
