// Package otp хранит одноразовые коды с TTL.
// Хранилище внедряется в OTPService: в памяти для одного инстанса, Valkey для нескольких.
package otp

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound - кода нет или он истек
var ErrNotFound = errors.New("otp not found")

// Entry - выданный код
type Entry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store - TTL-хранилище кодов
type Store interface {
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Get(ctx context.Context, key string) (*Entry, error)
	Delete(ctx context.Context, key string) error
	// Incr атомарно увеличивает счетчик; ttl ставится только новому счетчику
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Key - ключ кода для телефона
func Key(phone string) string {
	return "otp:" + phone
}

// AttemptsKey - счетчик попыток проверки кода для телефона
func AttemptsKey(phone string) string {
	return "otp:attempts:" + phone
}
