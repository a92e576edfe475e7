package workers

import (
	"context"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"

	"gorm.io/gorm"
)

// Expirer - хранилище, которое умеет вычищать истекшие записи (otp.MemoryStore)
type Expirer interface {
	Cleanup() int
}

// CleanupWorker удаляет просроченные refresh-токены и OTP из памяти
type CleanupWorker struct {
	db        *gorm.DB
	tokenRepo repositories.RefreshTokenRepository
	otpStore  Expirer
	interval  time.Duration
}

func NewCleanupWorker(db *gorm.DB, tokenRepo repositories.RefreshTokenRepository, otpStore Expirer, interval time.Duration) *CleanupWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupWorker{
		db:        db,
		tokenRepo: tokenRepo,
		otpStore:  otpStore,
		interval:  interval,
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.WorkerLog("cleanup", "stop", nil)
				return
			case <-ticker.C:
				w.RunOnce(ctx, time.Now())
			}
		}
	}()
}

// RunOnce возвращает число удаленных токенов и кодов
func (w *CleanupWorker) RunOnce(ctx context.Context, now time.Time) (tokens int64, codes int) {
	tokens, err := w.tokenRepo.CleanExpired(w.db.WithContext(ctx), now)
	if err != nil {
		logger.WorkerLog("cleanup", "refresh_tokens", err)
	}
	if w.otpStore != nil {
		codes = w.otpStore.Cleanup()
	}
	if tokens > 0 || codes > 0 {
		logger.WorkerLog("cleanup", "run", nil, "refresh_tokens", tokens, "otp_codes", codes)
	}
	return tokens, codes
}
