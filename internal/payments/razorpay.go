package payments

import (
	"context"
	"fmt"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"

	"github.com/razorpay/razorpay-go"
)

// RazorpayGateway - Gateway поверх razorpay-go
type RazorpayGateway struct {
	client *razorpay.Client
	keyID  string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	if keyID == "" || keySecret == "" {
		logger.Warn("Razorpay credentials are empty, order creation will fail")
	}
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
	}
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	amount := ToPaise(req.Amount)
	data := map[string]interface{}{
		"amount":   amount, // в пайсах
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}

	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to create Razorpay order", err, "receipt", req.Receipt)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	id, _ := order["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrOrderCreationFailed)
	}

	logger.CtxInfo(ctx, "Razorpay order created", "order_id", id, "amount_paise", amount)
	return &Order{
		ID:          id,
		AmountPaise: amount,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Raw:         order,
	}, nil
}
