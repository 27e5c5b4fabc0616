package eventlog

import (
	"context"

	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Save(ctx context.Context, e Event) error {
	return s.db.WithContext(ctx).Create(&e).Error
}

func (s *gormStore) GetByType(ctx context.Context, eventType string) ([]Event, error) {
	events := make([]Event, 0)
	err := s.db.WithContext(ctx).Where("event_type = ?", eventType).Order("created_at").Find(&events).Error
	return events, err
}
