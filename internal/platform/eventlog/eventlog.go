package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event 审计事件
// 对应数据库表: audit_events
type Event struct {
	ID        uuid.UUID         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Type      string            `gorm:"column:event_type;type:varchar(64);not null;index" json:"event_type"`
	Data      datatypes.JSONMap `json:"event_data,omitempty"`
	Metadata  datatypes.JSONMap `json:"event_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Event) TableName() string {
	return "audit_events"
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

func WithData(data map[string]any) EventOption {
	return func(e *Event) {
		e.Data = datatypes.JSONMap(data)
	}
}

func WithMetadata(metadata map[string]any) EventOption {
	return func(e *Event) {
		e.Metadata = datatypes.JSONMap(metadata)
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Metadata:  datatypes.JSONMap{},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Store 事件持久化
type Store interface {
	Save(ctx context.Context, e Event) error
	GetByType(ctx context.Context, eventType string) ([]Event, error)
}

// Sink 业务层只关心把事件交出去
type Sink interface {
	Log(e Event)
}

// Discard 丢弃所有事件
var Discard Sink = discard{}

type discard struct{}

func (discard) Log(Event) {}
