package payments

import (
	"context"
	"fmt"
	"sync"
)

// FakeGateway выдает заказы без сети (тесты и локальная разработка без ключей)
type FakeGateway struct {
	mu     sync.Mutex
	seq    int
	key    string
	Fail   error
	Orders []Order
}

func NewFakeGateway(keyID string) *FakeGateway {
	return &FakeGateway{key: keyID}
}

// SetFail включает или выключает отказ шлюза
func (f *FakeGateway) SetFail(err error) {
	f.mu.Lock()
	f.Fail = err
	f.mu.Unlock()
}

func (f *FakeGateway) KeyID() string {
	return f.key
}

func (f *FakeGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Fail != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, f.Fail)
	}

	f.seq++
	order := Order{
		ID:          fmt.Sprintf("order_fake_%06d", f.seq),
		AmountPaise: ToPaise(req.Amount),
		Currency:    req.Currency,
		Receipt:     req.Receipt,
	}
	f.Orders = append(f.Orders, order)
	return &order, nil
}
