package integration_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/payments"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createOrder(t *testing.T, ts *helpers.TestServer, token, planID string) dto.OrderResponse {
	t.Helper()

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/orders", token, map[string]interface{}{
		"plan_id": planID,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, "Ответ: "+body)

	var order dto.OrderResponse
	helpers.DecodeJSON(t, body, &order)
	return order
}

func capturedEvent(t *testing.T, orderID, paymentID string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"event": payments.EventPaymentCaptured,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": orderID,
					"amount":   30000,
					"status":   "captured",
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestCreateOrder(t *testing.T) {
	ts := newServer(t)

	plan := helpers.CreatePlan(t, ts.DB, "6days", 300)
	token, _ := helpers.CreateAndLoginCustomer(t, ts)

	order := createOrder(t, ts, token, plan.ID)
	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, int64(30000), order.AmountPaise)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, ts.Config.Razorpay.KeyID, order.KeyID)

	var payment models.PaymentTransaction
	require.NoError(t, ts.DB.First(&payment, "order_id = ?", order.OrderID).Error)
	assert.Equal(t, models.PaymentStatusCreated, payment.Status)

	// Неизвестный тариф
	res, _ := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/orders", token, map[string]interface{}{
		"plan_id": "00000000-0000-0000-0000-000000000000",
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// Шлюз недоступен
	ts.Gateway.SetFail(errors.New("gateway down"))
	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/orders", token, map[string]interface{}{
		"plan_id": plan.ID,
	})
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
}

// TestVerifyPayment_InvalidSignature - поддельная подпись помечает заказ неуспешным
func TestVerifyPayment_InvalidSignature(t *testing.T) {
	ts := newServer(t)

	plan := helpers.CreatePlan(t, ts.DB, "6days", 300)
	token, _ := helpers.CreateAndLoginCustomer(t, ts)
	order := createOrder(t, ts, token, plan.ID)

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/verify", token, map[string]interface{}{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_forged",
		"razorpay_signature":  "deadbeef",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, "INVALID_SIGNATURE")

	var payment models.PaymentTransaction
	require.NoError(t, ts.DB.First(&payment, "order_id = ?", order.OrderID).Error)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	// Правильная подпись для неуспешного заказа подписку уже не выдает
	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/verify", token, map[string]interface{}{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_late",
		"razorpay_signature":  helpers.CheckoutSignature(order.OrderID, "pay_late"),
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/subscriptions/current", token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

// TestVerifyPayment_Idempotent - повторное подтверждение возвращает ту же подписку
func TestVerifyPayment_Idempotent(t *testing.T) {
	ts := newServer(t)

	plan := helpers.CreatePlan(t, ts.DB, "6days", 300)
	token, user := helpers.CreateAndLoginCustomer(t, ts)
	order := createOrder(t, ts, token, plan.ID)

	verify := map[string]interface{}{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_once",
		"razorpay_signature":  helpers.CheckoutSignature(order.OrderID, "pay_once"),
	}

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/verify", token, verify)
	require.Equal(t, http.StatusOK, res.StatusCode, "Ответ: "+body)
	var first dto.SubscriptionResponse
	helpers.DecodeJSON(t, body, &first)

	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/verify", token, verify)
	require.Equal(t, http.StatusOK, res.StatusCode, "Ответ: "+body)
	var second dto.SubscriptionResponse
	helpers.DecodeJSON(t, body, &second)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, ts.DB.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Письмо о покупке ушло один раз
	purchaseMails := 0
	for _, mail := range ts.Email.Sent() {
		if len(mail.To) == 1 && mail.To[0] == user.Email {
			purchaseMails++
		}
	}
	assert.Equal(t, 1, purchaseMails)

	// Чужой заказ подтвердить нельзя
	otherToken, _ := helpers.CreateAndLoginCustomer(t, ts)
	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/verify", otherToken, verify)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/payments/history", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var history []dto.PaymentDTO
	helpers.DecodeJSON(t, body, &history)
	require.Len(t, history, 1)
	assert.Equal(t, models.PaymentStatusPaid, history[0].Status)
	require.NotNil(t, history[0].SubscriptionID)
	assert.Equal(t, first.ID, *history[0].SubscriptionID)
}

// TestWebhook - payment.captured выдает подписку без участия клиента
func TestWebhook(t *testing.T) {
	ts := newServer(t)

	plan := helpers.CreatePlan(t, ts.DB, "6days", 300)
	token, _ := helpers.CreateAndLoginCustomer(t, ts)
	order := createOrder(t, ts, token, plan.ID)

	body := capturedEvent(t, order.OrderID, "pay_webhook_1")

	// Без подписи
	res, _ := ts.SendRaw(t, http.MethodPost, "/api/v1/payments/webhook", body, map[string]string{
		"Content-Type": "application/json",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// Подпись чужим секретом
	res, _ = ts.SendRaw(t, http.MethodPost, "/api/v1/payments/webhook", body, map[string]string{
		"Content-Type":         "application/json",
		"X-Razorpay-Signature": payments.Sign(body, "some_other_secret"),
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	headers := map[string]string{
		"Content-Type":         "application/json",
		"X-Razorpay-Signature": payments.Sign(body, helpers.TestWebhookSecret),
	}
	res, respBody := ts.SendRaw(t, http.MethodPost, "/api/v1/payments/webhook", body, headers)
	require.Equal(t, http.StatusOK, res.StatusCode, "Ответ: "+respBody)

	sub := currentSubscription(t, ts, token)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, plan.ID, sub.PlanID)

	// Повтор вебхука ничего не меняет
	res, _ = ts.SendRaw(t, http.MethodPost, "/api/v1/payments/webhook", body, headers)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var count int64
	require.NoError(t, ts.DB.Model(&models.Subscription{}).Where("order_id = ?", order.OrderID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Клиентский verify после вебхука отдает ту же подписку
	res, verifyBody := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/verify", token, map[string]interface{}{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_webhook_1",
		"razorpay_signature":  helpers.CheckoutSignature(order.OrderID, "pay_webhook_1"),
	})
	require.Equal(t, http.StatusOK, res.StatusCode, "Ответ: "+verifyBody)
	var verified dto.SubscriptionResponse
	helpers.DecodeJSON(t, verifyBody, &verified)
	assert.Equal(t, sub.ID, verified.ID)
}
