package eventlog

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Worker 异步落库，业务请求不等待审计写入
type Worker struct {
	eventCh chan Event
	store   Store
	logger  *zap.Logger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorker(store Store, logger *zap.Logger, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		eventCh: make(chan Event, bufferSize),
		store:   store,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				w.logger.Info("draining events before shutdown", zap.Int("remaining_events", len(w.eventCh)))
				for len(w.eventCh) > 0 {
					event := <-w.eventCh
					if err := w.store.Save(context.Background(), event); err != nil {
						w.logger.Error("failed to save event during shutdown", zap.Error(err), zap.String("event_type", event.Type))
					}
				}
				return
			case event := <-w.eventCh:
				// 不用 w.ctx：Shutdown 时正在写的事件也要落库
				if err := w.store.Save(context.Background(), event); err != nil {
					w.logger.Error("failed to save event", zap.Error(err), zap.String("event_type", event.Type))
				}
			}
		}
	}()
}

// Log 非阻塞投递，缓冲区满时丢弃并告警
func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		w.logger.Warn("event channel full, dropping event", zap.String("event_type", event.Type))
	}
}

func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
