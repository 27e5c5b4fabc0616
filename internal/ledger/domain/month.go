package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MonthLayout 月份键的规范格式 (YYYY-MM-01)
const MonthLayout = "2006-01-02"

// Month 账期键，永远是 UTC 当月 1 日 00:00
type Month struct {
	t time.Time
}

// NewMonth 根据年月构造
func NewMonth(year int, month time.Month) Month {
	return Month{t: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// MonthOf 按 t 自身时区的日历取月份，不先转 UTC
// 2024-02-01 02:00 +06:00 属于二月
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// DateOf 按 t 自身时区的日历日截断，结果记为 UTC 当天 00:00
// 出勤 / 采购 / 拨款的日期都按此归一
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseMonth 只接受规范的 YYYY-MM-01，不解析自由格式日期
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, &ValidationError{Field: "month", Reason: fmt.Sprintf("%q is not a YYYY-MM-01 key", s)}
	}
	if t.Day() != 1 {
		return Month{}, &ValidationError{Field: "month", Reason: fmt.Sprintf("%q is not the first day of a month", s)}
	}
	return Month{t: t}, nil
}

func (m Month) IsZero() bool { return m.t.IsZero() }

// Start 当月第一天 (区间左闭)
func (m Month) Start() time.Time { return m.t }

// End 下月第一天 (区间右开)
func (m Month) End() time.Time { return m.t.AddDate(0, 1, 0) }

func (m Month) Next() Month { return Month{t: m.End()} }

func (m Month) Prev() Month { return Month{t: m.t.AddDate(0, -1, 0)} }

func (m Month) Before(o Month) bool { return m.t.Before(o.t) }

// Contains 判断 t 的日历日是否落在 [Start, End)
func (m Month) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(m.Start()) && d.Before(m.End())
}

func (m Month) String() string {
	if m.t.IsZero() {
		return ""
	}
	return m.t.Format(MonthLayout)
}

// ---------------------------------------------------------
// 持久化 & JSON

// GormDataType 列类型
func (Month) GormDataType() string { return "date" }

// Value implements driver.Valuer.
func (m Month) Value() (driver.Value, error) {
	if m.t.IsZero() {
		return nil, nil
	}
	return m.t, nil
}

// Scan implements sql.Scanner.
func (m *Month) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Month{}
		return nil
	case time.Time:
		*m = MonthOf(v)
		return nil
	case string:
		return m.scanString(v)
	case []byte:
		return m.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Month", src)
	}
}

func (m *Month) scanString(s string) error {
	// 不同驱动返回的日期字符串格式不一致，取前 10 位即可
	if len(s) < len(MonthLayout) {
		return fmt.Errorf("cannot scan %q into Month", s)
	}
	t, err := time.Parse(MonthLayout, s[:len(MonthLayout)])
	if err != nil {
		return err
	}
	*m = MonthOf(t)
	return nil
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
