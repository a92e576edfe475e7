package workers

import (
	"context"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"

	"gorm.io/gorm"
)

const DefaultSweepInterval = time.Hour

// SubscriptionWorker периодически переводит просроченные active подписки в expired.
// Ленивое истечение в сервисе работает и без него; воркер держит БД в порядке для отчетов.
type SubscriptionWorker struct {
	db       *gorm.DB
	service  services.SubscriptionService
	interval time.Duration
	now      func() time.Time
}

func NewSubscriptionWorker(db *gorm.DB, service services.SubscriptionService, interval time.Duration) *SubscriptionWorker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SubscriptionWorker{
		db:       db,
		service:  service,
		interval: interval,
		now:      time.Now,
	}
}

// Start запускает фоновый цикл; остановка через ctx
func (w *SubscriptionWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *SubscriptionWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// первый прогон сразу, не дожидаясь тика
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.WorkerLog("subscription", "stop", nil)
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep - один прогон истечения
func (w *SubscriptionWorker) Sweep(ctx context.Context) int64 {
	result, err := w.service.ExpireStale(w.db.WithContext(ctx), w.now(), "worker")
	if err != nil {
		logger.WorkerLog("subscription", "expire", err)
		return 0
	}
	if result.Expired > 0 {
		logger.WorkerLog("subscription", "expire", nil, "expired", result.Expired)
	}
	return result.Expired
}
