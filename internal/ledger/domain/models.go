package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member 成员 (室友)
// 对应数据库表: members
type Member struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Role      Role      `gorm:"type:varchar(16);not null;default:'viewer'" json:"role"`
	Active    bool      `gorm:"not null" json:"active"` // 不设 default：GORM 会把 false 当成零值忽略
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// NewMember 新成员默认在册
func NewMember(name string, role Role) *Member {
	return &Member{Name: name, Role: role, Active: true}
}

// MealRecord 某成员某天某餐的出勤
// Weight 为 0 等价于缺席，可以直接删除记录
type MealRecord struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  int64           `gorm:"not null;uniqueIndex:idx_meal_member_date_slot" json:"member_id"`
	Date      time.Time       `gorm:"type:date;not null;uniqueIndex:idx_meal_member_date_slot;index" json:"date"`
	Slot      MealSlot        `gorm:"type:varchar(8);not null;uniqueIndex:idx_meal_member_date_slot" json:"slot"`
	Weight    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"weight"`
	Cost      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost"` // 旧版逐行成本，已由餐费率取代
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (MealRecord) TableName() string {
	return "meal_records"
}

// ShoppingPurchase 成员采购食材的支出
type ShoppingPurchase struct {
	ID                int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID           int64             `gorm:"not null;index" json:"buyer_id"`
	Amount            decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"amount"`
	Date              time.Time         `gorm:"type:date;not null;index" json:"date"`
	Preference        PaymentPreference `gorm:"type:varchar(16)" json:"preference,omitempty"`
	AutoDepositAmount decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"auto_deposit_amount"`
	AutoDepositSlot   *int              `json:"auto_deposit_slot,omitempty"`
	Note              string            `gorm:"type:text" json:"note,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

func (ShoppingPurchase) TableName() string {
	return "shopping_purchases"
}

// FundTransfer 经理与采购人之间的资金往来
// Amount 有符号：正数 = 经理给采购人，负数 = 采购人退回经理
type FundTransfer struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID   int64           `gorm:"not null;index" json:"buyer_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Date      time.Time       `gorm:"type:date;not null;index" json:"date"`
	Note      string          `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (FundTransfer) TableName() string {
	return "fund_transfers"
}

// CommonExpense 由某成员代付的公共 (非餐饮) 开销
// UserShare 在创建时按当时的成员数冻结，之后成员变动不会重算
type CommonExpense struct {
	ID                int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string            `gorm:"type:varchar(100);not null" json:"name"`
	Amount            decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"amount"`
	Month             Month             `gorm:"not null;index" json:"month"`
	PayerID           int64             `gorm:"not null;index" json:"payer_id"`
	UserShare         decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"user_share"`
	MemberCount       int               `gorm:"not null" json:"member_count"`
	Preference        PaymentPreference `gorm:"type:varchar(16)" json:"preference,omitempty"`
	AutoDepositAmount decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"auto_deposit_amount"`
	AutoDepositSlot   *int              `json:"auto_deposit_slot,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

func (CommonExpense) TableName() string {
	return "common_expenses"
}

// UtilityBill 某类公共事业某月的账单总额
type UtilityBill struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Category  UtilityCategory `gorm:"type:varchar(16);not null;uniqueIndex:idx_bill_category_month" json:"category"`
	Month     Month           `gorm:"not null;uniqueIndex:idx_bill_category_month" json:"month"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (UtilityBill) TableName() string {
	return "utility_bills"
}

// UtilityContribution 成员对某类公共事业某月已缴的金额
type UtilityContribution struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  int64           `gorm:"not null;uniqueIndex:idx_contrib_member_category_month" json:"member_id"`
	Category  UtilityCategory `gorm:"type:varchar(16);not null;uniqueIndex:idx_contrib_member_category_month" json:"category"`
	Month     Month           `gorm:"not null;uniqueIndex:idx_contrib_member_category_month" json:"month"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (UtilityContribution) TableName() string {
	return "utility_contributions"
}

// DepositRecord 成员某月的押金账
// 8 个编号槽位 (d1..d8) 从左往右填写，加上上月结转 carry_forward
type DepositRecord struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID     int64           `gorm:"not null;uniqueIndex:idx_deposit_member_month" json:"member_id"`
	Month        Month           `gorm:"not null;uniqueIndex:idx_deposit_member_month" json:"month"`
	D1           decimal.Decimal `gorm:"column:d1;type:decimal(20,4);not null;default:0" json:"d1"`
	D2           decimal.Decimal `gorm:"column:d2;type:decimal(20,4);not null;default:0" json:"d2"`
	D3           decimal.Decimal `gorm:"column:d3;type:decimal(20,4);not null;default:0" json:"d3"`
	D4           decimal.Decimal `gorm:"column:d4;type:decimal(20,4);not null;default:0" json:"d4"`
	D5           decimal.Decimal `gorm:"column:d5;type:decimal(20,4);not null;default:0" json:"d5"`
	D6           decimal.Decimal `gorm:"column:d6;type:decimal(20,4);not null;default:0" json:"d6"`
	D7           decimal.Decimal `gorm:"column:d7;type:decimal(20,4);not null;default:0" json:"d7"`
	D8           decimal.Decimal `gorm:"column:d8;type:decimal(20,4);not null;default:0" json:"d8"`
	CarryForward decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"carry_forward"`
	Version      int64           `gorm:"not null" json:"version"` // 乐观锁，新建时为 1
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (DepositRecord) TableName() string {
	return "deposit_records"
}

// MonthStatus 月份是否已冻结
type MonthStatus struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Month     Month      `gorm:"not null;uniqueIndex" json:"month"`
	IsClosed  bool       `gorm:"not null" json:"is_closed"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (MonthStatus) TableName() string {
	return "month_statuses"
}

// ManagerPayable 经理欠付款人的金额
// 付款偏好为 payback 且备用金不足时产生，删除来源记录时一并删除
type ManagerPayable struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID   int64           `gorm:"not null;index" json:"member_id"`
	Month      Month           `gorm:"not null;index" json:"month"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	SourceKind SourceKind      `gorm:"type:varchar(32);not null;index:idx_payable_source" json:"source_kind"`
	SourceID   int64           `gorm:"not null;index:idx_payable_source" json:"source_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (ManagerPayable) TableName() string {
	return "manager_payables"
}

// AllModels 需要自动迁移的实体
func AllModels() []any {
	return []any{
		&Member{},
		&MealRecord{},
		&ShoppingPurchase{},
		&FundTransfer{},
		&CommonExpense{},
		&UtilityBill{},
		&UtilityContribution{},
		&DepositRecord{},
		&MonthStatus{},
		&ManagerPayable{},
	}
}
