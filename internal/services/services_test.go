package services_test

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/database"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/auth"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/email"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/metrics"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/otp"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/payments"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "key_secret_test"
	testWebhookSecret = "webhook_secret_test"
	operatorEmail     = "ops@milk.test"
)

type fixture struct {
	db      *gorm.DB
	mail    *email.MockProvider
	gateway *payments.FakeGateway
	store   *otp.MemoryStore
	metrics *metrics.Metrics

	auth          services.AuthService
	users         services.UserService
	otp           services.OTPService
	plans         services.PlanService
	subscriptions services.SubscriptionService
	payments      services.PaymentService
	admin         services.AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	auth.Configure("test-secret", 15*time.Minute)

	userRepo := repositories.NewUserRepository()
	addressRepo := repositories.NewAddressRepository()
	planRepo := repositories.NewPlanRepository()
	subRepo := repositories.NewSubscriptionRepository()
	eventRepo := repositories.NewEventRepository()
	paymentRepo := repositories.NewPaymentRepository()
	tokenRepo := repositories.NewRefreshTokenRepository()

	calc := lifecycle.New(time.UTC, lifecycle.DefaultMaxPausedDays)
	f := &fixture{
		db:      db,
		mail:    email.NewMockProvider(),
		gateway: payments.NewFakeGateway("rzp_test_key"),
		store:   otp.NewMemoryStore(),
		metrics: metrics.New(),
	}

	f.auth = services.NewAuthService(userRepo, tokenRepo, 15*time.Minute, 24*time.Hour)
	f.users = services.NewUserService(userRepo, addressRepo)
	f.otp = services.NewOTPService(f.store, userRepo, f.mail, f.metrics, 5*time.Minute, 5)
	f.plans = services.NewPlanService(planRepo)
	alert := services.OperatorAlert{Provider: f.mail, To: operatorEmail}
	f.subscriptions = services.NewSubscriptionService(subRepo, eventRepo, userRepo, calc, f.metrics, alert)
	f.payments = services.NewPaymentService(f.gateway,
		services.PaymentSecrets{KeySecret: testKeySecret, WebhookSecret: testWebhookSecret},
		paymentRepo, planRepo, addressRepo, userRepo, subRepo, eventRepo, f.mail, calc, f.metrics, alert)
	f.admin = services.NewAdminService(userRepo, subRepo, paymentRepo, calc, 3)
	return f
}

// customer регистрирует пользователя с адресом доставки
func (f *fixture) customer(t *testing.T, email, phone string) *dto.UserDTO {
	t.Helper()
	user, err := f.auth.Register(f.db, &dto.RegisterRequest{
		Name: "Asha", Email: email, Phone: phone, Password: "password123",
	})
	require.NoError(t, err)

	_, err = f.users.UpsertAddress(f.db, user.ID, &dto.AddressRequest{
		Line1: "12 MG Road", City: "Pune", Pincode: "411001",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) plan(t *testing.T, duration string) *dto.PlanResponse {
	t.Helper()
	plan, err := f.plans.Create(f.db, &dto.PlanRequest{
		Name: "Cow milk " + duration, SubscriptionType: "cow_milk", Duration: duration, Price: 420,
	})
	require.NoError(t, err)
	return plan
}

// purchase проходит заказ и проверку подписи
func (f *fixture) purchase(t *testing.T, userID, planID string, now time.Time) *dto.SubscriptionResponse {
	t.Helper()
	order, err := f.payments.CreateOrder(f.db, userID, &dto.CreateOrderRequest{PlanID: planID}, now)
	require.NoError(t, err)

	paymentID := "pay_" + order.OrderID
	sub, err := f.payments.VerifyPayment(f.db, userID, &dto.VerifyPaymentRequest{
		OrderID:   order.OrderID,
		PaymentID: paymentID,
		Signature: payments.Sign([]byte(order.OrderID+"|"+paymentID), testKeySecret),
	}, now)
	require.NoError(t, err)
	return sub
}

func requireAppError(t *testing.T, err error, httpCode int, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "ожидалась AppError, получено %T: %v", err, err)
	assert.Equal(t, httpCode, appErr.HTTPCode)
	assert.Equal(t, code, appErr.Code)
}

var (
	t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
)

func day(n int) time.Time { return t0.AddDate(0, 0, n) }

func TestPurchase_CreatesSubscriptionWithPromoDays(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "buyer@test.com", "9876543210")
	plan := f.plan(t, "6days")
	assert.Equal(t, 7, plan.DeliveryDays)

	sub := f.purchase(t, user.ID, plan.ID, t0)

	assert.Equal(t, lifecycle.StatusActive, sub.Status)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), sub.StartDate.UTC())
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), sub.EndDate.UTC())
	assert.Equal(t, 7, sub.RemainingDays)
	assert.True(t, sub.CanPause)
	assert.False(t, sub.CanResume)

	history, err := f.payments.History(f.db, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "paid", string(history[0].Status))
	require.NotNil(t, history[0].SubscriptionID)
	assert.Equal(t, sub.ID, *history[0].SubscriptionID)

	// второй заказ при активной подписке запрещен
	_, err = f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, day(1))
	requireAppError(t, err, http.StatusConflict, apperrors.CodeConflict)

	// письмо-подтверждение ушло покупателю
	sent := f.mail.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, []string{"buyer@test.com"}, sent[len(sent)-1].To)
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "idem@test.com", "")
	plan := f.plan(t, "15days")

	order, err := f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(42000), order.AmountPaise)
	assert.Equal(t, "rzp_test_key", order.KeyID)

	req := &dto.VerifyPaymentRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: payments.Sign([]byte(order.OrderID+"|pay_1"), testKeySecret),
	}
	first, err := f.payments.VerifyPayment(f.db, user.ID, req, t0)
	require.NoError(t, err)
	second, err := f.payments.VerifyPayment(f.db, user.ID, req, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), first.EndDate.UTC())

	history, err := f.subscriptions.History(f.db, user.ID, t0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// чужой пользователь не видит заказ
	other := f.customer(t, "other@test.com", "")
	_, err = f.payments.VerifyPayment(f.db, other.ID, req, t0)
	requireAppError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestVerifyPayment_RefundWhenSubscriptionRunning(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "twice@test.com", "")
	plan := f.plan(t, "15days")

	// два заказа открыты до оплаты любого из них
	first, err := f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, t0)
	require.NoError(t, err)
	second, err := f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, t0)
	require.NoError(t, err)
	require.NotEqual(t, first.OrderID, second.OrderID)

	verify := func(orderID, paymentID string) error {
		_, err := f.payments.VerifyPayment(f.db, user.ID, &dto.VerifyPaymentRequest{
			OrderID:   orderID,
			PaymentID: paymentID,
			Signature: payments.Sign([]byte(orderID+"|"+paymentID), testKeySecret),
		}, t0.Add(time.Minute))
		return err
	}
	require.NoError(t, verify(first.OrderID, "pay_first"))

	operatorMails := func() []email.Email {
		var out []email.Email
		for _, m := range f.mail.Sent() {
			if len(m.To) == 1 && m.To[0] == operatorEmail {
				out = append(out, m)
			}
		}
		return out
	}

	err = verify(second.OrderID, "pay_second")
	requireAppError(t, err, http.StatusConflict, apperrors.CodeRefundRequired)

	var payment models.PaymentTransaction
	require.NoError(t, f.db.Where("order_id = ?", second.OrderID).First(&payment).Error)
	assert.Equal(t, models.PaymentStatusRefundRequired, payment.Status)
	assert.Equal(t, "pay_second", payment.PaymentID)
	assert.NotNil(t, payment.PaidAt)
	assert.Nil(t, payment.SubscriptionID)

	history, err := f.subscriptions.History(f.db, user.ID, t0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	alerts := operatorMails()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].HTMLBody, second.OrderID)

	// повтор проверки и вебхук не шлют второе письмо
	err = verify(second.OrderID, "pay_second")
	requireAppError(t, err, http.StatusConflict, apperrors.CodeRefundRequired)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_second","order_id":"` +
		second.OrderID + `","amount":42000,"status":"captured"}}}}`)
	assert.NoError(t, f.payments.HandleWebhook(f.db, body, payments.Sign(body, testWebhookSecret), t0.Add(time.Hour)))
	assert.Len(t, operatorMails(), 1)

	// детали события покупки сохранены
	var event models.SubscriptionEvent
	require.NoError(t, f.db.Where("user_id = ? AND action = ?", user.ID, models.ActionPurchased).First(&event).Error)
	assert.Contains(t, string(event.Details), first.OrderID)
	assert.Contains(t, string(event.Details), "pay_first")
}

func TestVerifyPayment_BadSignatureFailsOrder(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "bad@test.com", "")
	plan := f.plan(t, "6days")

	order, err := f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, t0)
	require.NoError(t, err)

	_, err = f.payments.VerifyPayment(f.db, user.ID, &dto.VerifyPaymentRequest{
		OrderID: order.OrderID, PaymentID: "pay_x", Signature: "deadbeef",
	}, t0)
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidSignature)

	_, err = f.payments.VerifyPayment(f.db, user.ID, &dto.VerifyPaymentRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_x",
		Signature: payments.Sign([]byte(order.OrderID+"|pay_x"), testKeySecret),
	}, t0)
	requireAppError(t, err, http.StatusConflict, apperrors.CodePaymentFailed)

	_, err = f.subscriptions.GetCurrent(f.db, user.ID, t0)
	requireAppError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestCreateOrder_Preconditions(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, "6days")

	noAddress, err := f.auth.Register(f.db, &dto.RegisterRequest{Name: "No Addr", Email: "noaddr@test.com", Password: "password123"})
	require.NoError(t, err)
	_, err = f.payments.CreateOrder(f.db, noAddress.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, t0)
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidOperation)

	user := f.customer(t, "pre@test.com", "")

	require.NoError(t, f.plans.Deactivate(f.db, plan.ID))
	_, err = f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, t0)
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidOperation)

	_, err = f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: "00000000-0000-0000-0000-000000000000"}, t0)
	requireAppError(t, err, http.StatusNotFound, apperrors.CodeNotFound)

	active := f.plan(t, "15days")
	f.gateway.Fail = assert.AnError
	_, err = f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: active.ID}, t0)
	requireAppError(t, err, http.StatusBadGateway, apperrors.CodeExternalServiceError)
}

func TestCreateOrder_AllowedAfterLazyExpiry(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "again@test.com", "")
	plan := f.plan(t, "6days")
	f.purchase(t, user.ID, plan.ID, t0)

	// строка все еще active, но end_date прошел
	again := f.purchase(t, user.ID, plan.ID, day(10))
	assert.Equal(t, lifecycle.StatusActive, again.Status)

	current, err := f.subscriptions.GetCurrent(f.db, user.ID, day(10))
	require.NoError(t, err)
	assert.Equal(t, again.ID, current.ID)
}

func TestWebhook(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "hook@test.com", "")
	plan := f.plan(t, "6days")

	order, err := f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: plan.ID}, t0)
	require.NoError(t, err)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_hook","order_id":"` +
		order.OrderID + `","amount":42000,"status":"captured"}}}}`)

	err = f.payments.HandleWebhook(f.db, body, "forged", t0)
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidSignature)

	require.NoError(t, f.payments.HandleWebhook(f.db, body, payments.Sign(body, testWebhookSecret), t0))
	// повтор доставки вебхука ничего не дублирует
	require.NoError(t, f.payments.HandleWebhook(f.db, body, payments.Sign(body, testWebhookSecret), t0))

	history, err := f.subscriptions.History(f.db, user.ID, t0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	ignored := []byte(`{"event":"order.paid","payload":{}}`)
	assert.NoError(t, f.payments.HandleWebhook(f.db, ignored, payments.Sign(ignored, testWebhookSecret), t0))

	unknown := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_z","order_id":"order_missing"}}}}`)
	assert.NoError(t, f.payments.HandleWebhook(f.db, unknown, payments.Sign(unknown, testWebhookSecret), t0))
}

func TestPauseResume_ShiftsEndDate(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "pause@test.com", "")
	plan := f.plan(t, "6days")
	f.purchase(t, user.ID, plan.ID, t0)

	paused, err := f.subscriptions.Pause(f.db, user.ID, day(2))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPaused, paused.Status)
	assert.Equal(t, 5, paused.RemainingDays)
	assert.True(t, paused.CanResume)

	// пока пауза, остаток заморожен
	frozen, err := f.subscriptions.GetCurrent(f.db, user.ID, day(5))
	require.NoError(t, err)
	assert.Equal(t, 5, frozen.RemainingDays)

	_, err = f.subscriptions.Pause(f.db, user.ID, day(3))
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidStatus)

	resumed, err := f.subscriptions.Resume(f.db, user.ID, day(6))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusActive, resumed.Status)
	assert.Equal(t, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), resumed.EndDate.UTC())
	assert.Equal(t, 4, resumed.TotalPausedDays)
	assert.Nil(t, resumed.PausedAt)
	assert.NotNil(t, resumed.ResumedAt)

	_, err = f.subscriptions.Resume(f.db, user.ID, day(7))
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidStatus)

	inspection, err := f.subscriptions.Inspect(f.db, user.ID, day(7))
	require.NoError(t, err)
	actions := make([]string, 0, len(inspection.Events))
	for _, e := range inspection.Events {
		actions = append(actions, string(e.Action))
	}
	assert.Equal(t, []string{"purchased", "paused", "resumed"}, actions)
	assert.Empty(t, inspection.CorruptState)
}

func TestLazyExpiry(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "lazy@test.com", "")
	plan := f.plan(t, "6days")
	sub := f.purchase(t, user.ID, plan.ID, t0)

	current, err := f.subscriptions.GetCurrent(f.db, user.ID, day(9))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusExpired, current.Status)
	assert.Equal(t, 0, current.RemainingDays)
	assert.False(t, current.CanPause)

	// статус сохранен в БД
	stored, err := repositories.NewSubscriptionRepository().FindByID(f.db, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusExpired, stored.Status)

	_, err = f.subscriptions.Pause(f.db, user.ID, day(9))
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidStatus)
}

func TestPause_PersistsExpiryEvenWhenRejected(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "reject@test.com", "")
	plan := f.plan(t, "6days")
	sub := f.purchase(t, user.ID, plan.ID, t0)

	_, err := f.subscriptions.Pause(f.db, user.ID, day(20))
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidStatus)

	stored, err := repositories.NewSubscriptionRepository().FindByID(f.db, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusExpired, stored.Status)

	events, err := repositories.NewEventRepository().FindBySubscriptionID(f.db, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "expired", string(events[len(events)-1].Action))
}

func TestResume_CorruptStateAlertsOperator(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "corrupt@test.com", "")
	plan := f.plan(t, "6days")
	sub := f.purchase(t, user.ID, plan.ID, t0)

	require.NoError(t, f.db.Exec("UPDATE subscriptions SET status = ?, paused_at = NULL WHERE id = ?", "paused", sub.ID).Error)

	_, err := f.subscriptions.Resume(f.db, user.ID, day(3))
	requireAppError(t, err, http.StatusInternalServerError, apperrors.CodeCorruptState)
	assert.ErrorIs(t, err, lifecycle.ErrCorruptState)

	// строка не тронута
	stored, err := repositories.NewSubscriptionRepository().FindByID(f.db, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPaused, stored.Status)
	assert.Nil(t, stored.PausedAt)

	var alerted bool
	for _, m := range f.mail.Sent() {
		if len(m.To) == 1 && m.To[0] == operatorEmail {
			alerted = true
			assert.Contains(t, m.HTMLBody, sub.ID)
		}
	}
	assert.True(t, alerted, "оператор должен получить письмо")

	inspection, err := f.subscriptions.Inspect(f.db, user.ID, day(3))
	require.NoError(t, err)
	assert.Contains(t, inspection.CorruptState, "paused_at")
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "cancel@test.com", "")
	plan := f.plan(t, "6days")
	sub := f.purchase(t, user.ID, plan.ID, t0)

	_, err := f.subscriptions.Pause(f.db, user.ID, day(1))
	require.NoError(t, err)

	cancelled, err := f.subscriptions.Cancel(f.db, user.ID, day(2))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCancelled, cancelled.Status)
	assert.Equal(t, 0, cancelled.RemainingDays)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.subscriptions.Cancel(f.db, user.ID, day(3))
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidStatus)

	_, err = f.subscriptions.ForceCancel(f.db, sub.ID, day(3))
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidStatus)

	_, err = f.subscriptions.Pause(f.db, "unknown-user", day(3))
	requireAppError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestForceCancel(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "force@test.com", "")
	plan := f.plan(t, "6days")
	sub := f.purchase(t, user.ID, plan.ID, t0)

	cancelled, err := f.subscriptions.ForceCancel(f.db, sub.ID, day(1))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCancelled, cancelled.Status)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, "6days")

	old1 := f.customer(t, "old1@test.com", "")
	old2 := f.customer(t, "old2@test.com", "")
	fresh := f.customer(t, "fresh@test.com", "")
	pausedUser := f.customer(t, "paused@test.com", "")

	f.purchase(t, old1.ID, plan.ID, t0)
	f.purchase(t, old2.ID, plan.ID, t0)
	f.purchase(t, fresh.ID, plan.ID, day(5))
	f.purchase(t, pausedUser.ID, plan.ID, t0)
	_, err := f.subscriptions.Pause(f.db, pausedUser.ID, day(1))
	require.NoError(t, err)

	result, err := f.subscriptions.ExpireStale(f.db, day(9), "test")
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Expired)

	again, err := f.subscriptions.ExpireStale(f.db, day(9), "test")
	require.NoError(t, err)
	assert.EqualValues(t, 0, again.Expired)

	list, err := f.subscriptions.List(f.db, dto.AdminSubscriptionFilter{Status: "expired"}, 1, 10, day(9))
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	dashboard, err := f.admin.Dashboard(f.db, day(9))
	require.NoError(t, err)
	assert.EqualValues(t, 4, dashboard.Users)
	assert.EqualValues(t, 2, dashboard.Subscriptions["expired"])
	assert.EqualValues(t, 1, dashboard.Subscriptions["active"])
	assert.EqualValues(t, 1, dashboard.Subscriptions["paused"])
	assert.EqualValues(t, 4, dashboard.PaidOrders)
	assert.InDelta(t, 4*420.0, dashboard.RevenueTotal, 0.001)
	// fresh: end_date 2024-01-13, в окне трех дней от 2024-01-10
	require.Len(t, dashboard.ExpiringSoon, 1)
	assert.Equal(t, 3, dashboard.ExpiringSoon[0].RemainingDays)
}

var otpCode = regexp.MustCompile(`<b>(\d{6})</b>`)

func lastOTP(t *testing.T, mail *email.MockProvider) string {
	t.Helper()
	sent := mail.Sent()
	require.NotEmpty(t, sent)
	m := otpCode.FindStringSubmatch(sent[len(sent)-1].HTMLBody)
	require.Len(t, m, 2)
	return m[1]
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestOTP_VerifyAndLockout(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "otp@test.com", "9876501234")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	resp, err := f.otp.RequestOTP(ctx, f.db, &dto.OTPRequest{Phone: "9876501234"})
	require.NoError(t, err)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	code := lastOTP(t, f.mail)

	for i := 0; i < 4; i++ {
		err = f.otp.VerifyOTP(ctx, f.db, &dto.OTPVerifyRequest{Phone: "9876501234", Code: wrongCode(code)})
		requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidOTP)
	}
	err = f.otp.VerifyOTP(ctx, f.db, &dto.OTPVerifyRequest{Phone: "9876501234", Code: wrongCode(code)})
	requireAppError(t, err, http.StatusTooManyRequests, apperrors.CodeTooManyAttempts)

	// код сгорел, даже правильный больше не подходит
	err = f.otp.VerifyOTP(ctx, f.db, &dto.OTPVerifyRequest{Phone: "9876501234", Code: code})
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidOTP)

	_, err = f.otp.RequestOTP(ctx, f.db, &dto.OTPRequest{Phone: "9876501234"})
	require.NoError(t, err)
	require.NoError(t, f.otp.VerifyOTP(ctx, f.db, &dto.OTPVerifyRequest{Phone: "9876501234", Code: lastOTP(t, f.mail)}))

	me, err := f.users.GetMe(f.db, user.ID)
	require.NoError(t, err)
	assert.True(t, me.IsPhoneVerified)

	_, err = f.otp.RequestOTP(ctx, f.db, &dto.OTPRequest{Phone: "9000000000"})
	requireAppError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestOTP_ConcurrentGuessesBurnCode(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "burst@test.com", "9876505678")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	_, err := f.otp.RequestOTP(ctx, f.db, &dto.OTPRequest{Phone: "9876505678"})
	require.NoError(t, err)
	code := lastOTP(t, f.mail)

	var (
		wg     sync.WaitGroup
		locked atomic.Int32
		passed atomic.Int32
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.otp.VerifyOTP(ctx, f.db, &dto.OTPVerifyRequest{Phone: "9876505678", Code: wrongCode(code)})
			if err == nil {
				passed.Add(1)
				return
			}
			if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.CodeTooManyAttempts {
				locked.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, passed.Load())
	assert.GreaterOrEqual(t, locked.Load(), int32(1))

	err = f.otp.VerifyOTP(ctx, f.db, &dto.OTPVerifyRequest{Phone: "9876505678", Code: code})
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidOTP)
}

func TestAuth_LoginRefreshLogout(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "auth@test.com", "9811111111")

	_, err := f.auth.Register(f.db, &dto.RegisterRequest{Name: "Dup", Email: "AUTH@test.com", Password: "password123"})
	requireAppError(t, err, http.StatusConflict, apperrors.CodeAlreadyExists)

	_, err = f.auth.Register(f.db, &dto.RegisterRequest{Name: "Dup", Email: "dup@test.com", Phone: "9811111111", Password: "password123"})
	requireAppError(t, err, http.StatusConflict, apperrors.CodeAlreadyExists)

	_, err = f.auth.Login(f.db, &dto.LoginRequest{Email: "auth@test.com", Password: "wrong-password"})
	requireAppError(t, err, http.StatusUnauthorized, apperrors.CodeInvalidCredentials)

	login, err := f.auth.Login(f.db, &dto.LoginRequest{Email: "auth@test.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)
	assert.EqualValues(t, 900, login.ExpiresIn)

	claims, err := auth.ParseToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, claims.UserID)
	assert.Equal(t, "customer", claims.Role)

	refreshed, err := f.auth.RefreshToken(f.db, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// старый refresh token больше не работает
	_, err = f.auth.RefreshToken(f.db, login.RefreshToken)
	requireAppError(t, err, http.StatusUnauthorized, apperrors.CodeInvalidToken)

	require.NoError(t, f.auth.Logout(f.db, refreshed.RefreshToken))
	_, err = f.auth.RefreshToken(f.db, refreshed.RefreshToken)
	requireAppError(t, err, http.StatusUnauthorized, apperrors.CodeInvalidToken)
}

func TestUser_ProfileAndAddress(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "me@test.com", "")

	lat := 18.52
	addr, err := f.users.UpsertAddress(f.db, user.ID, &dto.AddressRequest{
		Line1: "Flat 4", City: "Pune", Pincode: "411004", Latitude: &lat,
	})
	require.NoError(t, err)
	assert.Equal(t, "Flat 4", addr.Line1)
	require.NotNil(t, addr.Latitude)

	phone := "9822222222"
	me, err := f.users.UpdateMe(f.db, user.ID, &dto.UpdateUserRequest{Name: "Asha K", Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Asha K", me.Name)
	assert.Equal(t, phone, me.Phone)
	require.NotNil(t, me.Address)
	assert.Equal(t, "411004", me.Address.Pincode)

	_, err = f.users.GetMe(f.db, "missing")
	requireAppError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestPlans(t *testing.T) {
	f := newFixture(t)
	inactive := false
	hidden, err := f.plans.Create(f.db, &dto.PlanRequest{
		Name: "Buffalo", SubscriptionType: "buffalo_milk", Duration: "15 days", Price: 900,
		Features: []string{"morning delivery"}, IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "15days", hidden.Duration)
	assert.Equal(t, 17, hidden.DeliveryDays)
	assert.Equal(t, []string{"morning delivery"}, hidden.Features)

	visible := f.plan(t, "6days")

	active, err := f.plans.ListActive(f.db)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, visible.ID, active[0].ID)

	all, err := f.plans.ListAll(f.db)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.plans.Create(f.db, &dto.PlanRequest{Name: "Broken", SubscriptionType: "cow_milk", Duration: "weekly", Price: 1})
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeValidationFailed)

	updated, err := f.plans.Update(f.db, visible.ID, &dto.PlanRequest{
		Name: "Cow milk weekly", SubscriptionType: "cow_milk", Duration: "6days", Price: 450,
	})
	require.NoError(t, err)
	assert.InDelta(t, 450.0, updated.Price, 0.001)
}

func TestPlans_CreateHiddenStaysInactive(t *testing.T) {
	f := newFixture(t)
	user := f.customer(t, "hidden@test.com", "")

	inactive := false
	hidden, err := f.plans.Create(f.db, &dto.PlanRequest{
		Name: "Cow milk preview", SubscriptionType: "cow_milk", Duration: "6days", Price: 300, IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.False(t, hidden.IsActive)

	stored, err := f.plans.Get(f.db, hidden.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	active, err := f.plans.ListActive(f.db)
	require.NoError(t, err)
	assert.Empty(t, active)

	// скрытый тариф не продается
	_, err = f.payments.CreateOrder(f.db, user.ID, &dto.CreateOrderRequest{PlanID: hidden.ID}, t0)
	requireAppError(t, err, http.StatusBadRequest, apperrors.CodeInvalidOperation)
}
