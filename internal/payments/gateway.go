// Package payments - интеграция с платежным шлюзом: создание заказов и проверка подписей
package payments

import (
	"context"
	"errors"
	"math"
)

var ErrOrderCreationFailed = errors.New("failed to create order")

// OrderRequest - сумма в рупиях, receipt - id нашей транзакции
type OrderRequest struct {
	Amount   float64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order - заказ, созданный в шлюзе
type Order struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
	Raw         map[string]interface{}
}

// Gateway создает заказы на стороне платежного провайдера
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	KeyID() string
}

// ToPaise переводит рупии в пайсы с округлением
func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
