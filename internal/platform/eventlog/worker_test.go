package eventlog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Event{}))
	// 单连接，worker 与断言不会争用内存库
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewGormStore(db)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(
		WithType("month.closed"),
		WithData(map[string]any{"month": "2024-01-01"}),
		WithMetadata(map[string]any{"actor": 1}),
	)
	require.NotEmpty(t, e.ID.String())
	require.Equal(t, "month.closed", e.Type)
	require.Equal(t, "2024-01-01", e.Data["month"])
	require.False(t, e.CreatedAt.IsZero())
}

func TestWorker_DrainsOnShutdown(t *testing.T) {
	store := newStore(t)
	w := NewWorker(store, zaptest.NewLogger(t), 10)
	w.Start()

	for i := 0; i < 3; i++ {
		w.Log(NewEvent(WithType("purchase.recorded"), WithData(map[string]any{"n": i})))
	}
	w.Log(NewEvent(WithType("month.closed")))
	w.Shutdown()

	events, err := store.GetByType(context.Background(), "purchase.recorded")
	require.NoError(t, err)
	require.Len(t, events, 3)

	closed, err := store.GetByType(context.Background(), "month.closed")
	require.NoError(t, err)
	require.Len(t, closed, 1)
}

func TestWorker_DropsWhenFull(t *testing.T) {
	store := newStore(t)
	// 不启动消费者，缓冲区满后 Log 不能阻塞
	w := NewWorker(store, zaptest.NewLogger(t), 1)
	w.Log(NewEvent(WithType("a")))
	w.Log(NewEvent(WithType("b")))
	require.Len(t, w.eventCh, 1)
}

func TestDiscard(t *testing.T) {
	Discard.Log(NewEvent(WithType("ignored")))
}

func TestGormStore_MetadataRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewEvent(
		WithType("month.closed"),
		WithData(map[string]any{"month": "2024-01-01"}),
		WithMetadata(map[string]any{"actor_id": 7}),
	)))
	require.NoError(t, store.Save(ctx, NewEvent(WithType("month.opened"))))

	events, err := store.GetByType(ctx, "month.closed")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "2024-01-01", events[0].Data["month"])
	// JSON 列读回后数字是 float64
	require.EqualValues(t, 7, events[0].Metadata["actor_id"])
}
