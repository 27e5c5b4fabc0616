package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DepositSlotCount 每月押金槽位数量
const DepositSlotCount = 8

// DepositSlots 按顺序排列的槽位，下标 0 对应 d1
type DepositSlots [DepositSlotCount]decimal.Decimal

// slotColumns 槽位号 -> 列名，封闭集合，不接受运行时拼接的字段名
var slotColumns = [DepositSlotCount]string{"d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8"}

// ColumnCarryForward 结转列
const ColumnCarryForward = "carry_forward"

// Slots 以数组形式读取 d1..d8
func (d *DepositRecord) Slots() DepositSlots {
	return DepositSlots{d.D1, d.D2, d.D3, d.D4, d.D5, d.D6, d.D7, d.D8}
}

func (d *DepositRecord) setSlots(s DepositSlots) {
	d.D1, d.D2, d.D3, d.D4 = s[0], s[1], s[2], s[3]
	d.D5, d.D6, d.D7, d.D8 = s[4], s[5], s[6], s[7]
}

// Total 本月押金合计 = d1..d8 + carry_forward
func (d *DepositRecord) Total() decimal.Decimal {
	total := d.CarryForward
	for _, v := range d.Slots() {
		total = total.Add(v)
	}
	return total
}

// FirstEmptySlot 第一个值为 0 的槽位号 (1..8)；全满时 ok=false
func (d *DepositRecord) FirstEmptySlot() (slot int, ok bool) {
	for i, v := range d.Slots() {
		if v.IsZero() {
			return i + 1, true
		}
	}
	return 0, false
}

// Apply 在内存中应用一次更新
func (d *DepositRecord) Apply(u DepositUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	switch u.Kind {
	case UpdateSlot:
		s := d.Slots()
		s[u.Slot-1] = u.Value
		d.setSlots(s)
	case UpdateCarryForward:
		d.CarryForward = u.Value
	}
	return nil
}

// ---------------------------------------------------------

// DepositUpdateKind 押金更新的目标类型
type DepositUpdateKind int

const (
	UpdateSlot DepositUpdateKind = iota + 1
	UpdateCarryForward
)

func (k DepositUpdateKind) String() string {
	switch k {
	case UpdateSlot:
		return "slot"
	case UpdateCarryForward:
		return "carry_forward"
	default:
		return fmt.Sprintf("DepositUpdateKind(%d)", int(k))
	}
}

// DepositUpdate 对押金记录的定向更新
// 要么写某一个槽位，要么写 carry_forward，持久层只会碰到一个字段
type DepositUpdate struct {
	Kind  DepositUpdateKind
	Slot  int // 1..8，仅 UpdateSlot 使用
	Value decimal.Decimal
}

// SlotUpdate 写入槽位 (1..8)
func SlotUpdate(slot int, value decimal.Decimal) DepositUpdate {
	return DepositUpdate{Kind: UpdateSlot, Slot: slot, Value: value}
}

// ClearSlot 把槽位清零 (撤销自动存款时使用)
func ClearSlot(slot int) DepositUpdate {
	return SlotUpdate(slot, decimal.Zero)
}

// CarryForwardUpdate 写入上月结转
func CarryForwardUpdate(value decimal.Decimal) DepositUpdate {
	return DepositUpdate{Kind: UpdateCarryForward, Value: value}
}

// Validate 校验目标合法
func (u DepositUpdate) Validate() error {
	switch u.Kind {
	case UpdateSlot:
		if u.Slot < 1 || u.Slot > DepositSlotCount {
			return &ValidationError{Field: "slot", Reason: fmt.Sprintf("slot %d out of range 1..%d", u.Slot, DepositSlotCount)}
		}
		if u.Value.IsNegative() {
			return &ValidationError{Field: "value", Reason: "deposit slot cannot be negative"}
		}
	case UpdateCarryForward:
	default:
		return &ValidationError{Field: "kind", Reason: u.Kind.String()}
	}
	return CheckScale("value", u.Value, AmountScale)
}

// Column 更新对应的列名
func (u DepositUpdate) Column() (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	if u.Kind == UpdateCarryForward {
		return ColumnCarryForward, nil
	}
	return slotColumns[u.Slot-1], nil
}
