package helpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/database"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/app"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/auth"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/config"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/email"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/otp"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/payments"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	TestKeySecret     = "test_key_secret"
	TestWebhookSecret = "test_webhook_secret"
	TestOperatorEmail = "ops@test.local"
)

// Clock - управляемые часы для сценариев "прошло N дней"
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AdvanceDays переводит часы на n суток вперед
func (c *Clock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

// TestServer - полный роутер приложения поверх sqlite в памяти
type TestServer struct {
	Server   *httptest.Server
	DB       *gorm.DB
	Config   *config.Config
	Email    *email.MockProvider
	Gateway  *payments.FakeGateway
	OTP      *otp.MemoryStore
	Clock    *Clock
	Services *services.ServiceContainer
}

// TestConfig - конфиг для тестов: UTC-календарь, тестовые секреты шлюза
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.Server.ShutdownTimeout = 1
	cfg.Database.Driver = "sqlite"
	cfg.JWT.Secret = "test-jwt-secret"
	cfg.JWT.TTL = 60
	cfg.JWT.RefreshTTL = 24
	cfg.Email.OperatorTo = TestOperatorEmail
	cfg.Razorpay.KeyID = "rzp_test_key"
	cfg.Razorpay.KeySecret = TestKeySecret
	cfg.Razorpay.WebhookSecret = TestWebhookSecret
	cfg.Razorpay.Currency = "INR"
	cfg.OTP.TTL = 300
	cfg.OTP.MaxAttempts = 5
	cfg.Subscription.Timezone = "UTC"
	cfg.Subscription.MaxPausedDays = 365
	cfg.Subscription.ExpiringDays = 3
	return cfg
}

// NewTestServer поднимает изолированную БД и сервер; закрываются через t.Cleanup
func NewTestServer(t *testing.T, start time.Time) *TestServer {
	t.Helper()

	logger.InitWithWriter("test", io.Discard)

	cfg := TestConfig()
	auth.Configure(cfg.JWT.Secret, cfg.AccessTTL())

	db, err := database.OpenMemory()
	require.NoError(t, err, "Не удалось поднять тестовую БД")

	ts := &TestServer{
		DB:      db,
		Config:  cfg,
		Email:   email.NewMockProvider(),
		Gateway: payments.NewFakeGateway(cfg.Razorpay.KeyID),
		OTP:     otp.NewMemoryStore(),
		Clock:   NewClock(start),
	}

	router, container, err := app.SetupRouter(cfg, db, app.Dependencies{
		Email:   ts.Email,
		Gateway: ts.Gateway,
		OTP:     ts.OTP,
		Clock:   ts.Clock.Now,
	})
	require.NoError(t, err, "Не удалось собрать роутер")

	ts.Services = container
	ts.Server = httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return ts
}

func (ts *TestServer) Close() {
	ts.Server.Close()
	if sqlDB, err := ts.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// SendRequest отправляет JSON-запрос и возвращает ответ и тело строкой
func (ts *TestServer) SendRequest(t *testing.T, method, path, token string, body interface{}) (*http.Response, string) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err, "Ошибка кодирования JSON для запроса")
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	require.NoError(t, err, "Ошибка создания HTTP-запроса")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return ts.do(t, req)
}

// SendRaw - запрос с готовым телом и заголовками (вебхук)
func (ts *TestServer) SendRaw(t *testing.T, method, path string, body []byte, headers map[string]string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, ts.Server.URL+path, bytes.NewReader(body))
	require.NoError(t, err, "Ошибка создания HTTP-запроса")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return ts.do(t, req)
}

func (ts *TestServer) do(t *testing.T, req *http.Request) (*http.Response, string) {
	res, err := ts.Server.Client().Do(req)
	require.NoError(t, err, "Ошибка отправки HTTP-запроса")
	defer res.Body.Close()

	resBodyBytes, err := io.ReadAll(res.Body)
	require.NoError(t, err, "Ошибка чтения тела ответа")

	return res, string(resBodyBytes)
}

// DecodeJSON разбирает тело ответа в out
func DecodeJSON(t *testing.T, body string, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(body), out), "Не удалось распарсить JSON: %s", body)
}
