package integration_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/test/helpers"

	"github.com/stretchr/testify/require"
)

// startTime - утро 1 марта, чтобы календарные дни считались без сюрпризов
var startTime = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

// newServer - отдельная БД и часы на каждый тест
func newServer(t *testing.T) *helpers.TestServer {
	t.Helper()
	return helpers.NewTestServer(t, startTime)
}

// customerWithSubscription - покупатель с оплаченной подпиской на 6days (7 дней доставки)
func customerWithSubscription(t *testing.T, ts *helpers.TestServer) (string, *models.User, dto.SubscriptionResponse) {
	t.Helper()

	plan := helpers.CreatePlan(t, ts.DB, "6days", 300)
	token, user := helpers.CreateAndLoginCustomer(t, ts)
	sub := helpers.Purchase(t, ts, token, plan.ID)
	return token, user, sub
}

func currentSubscription(t *testing.T, ts *helpers.TestServer, token string) dto.SubscriptionResponse {
	t.Helper()

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/subscriptions/current", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, "Ответ: "+body)

	var sub dto.SubscriptionResponse
	helpers.DecodeJSON(t, body, &sub)
	return sub
}
