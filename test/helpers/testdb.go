package helpers

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/auth"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/payments"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const DefaultPassword = "password123"

var seq atomic.Int64

// UniqueEmail - email, который не пересечется между тестами
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@test.com", prefix, seq.Add(1))
}

// UniquePhone - валидный индийский номер
func UniquePhone() string {
	return fmt.Sprintf("98%08d", seq.Add(1))
}

// CreateUser создает пользователя с хешем пароля напрямую в БД
func CreateUser(t *testing.T, db *gorm.DB, name, email, password string, role models.UserRole) *models.User {
	t.Helper()

	hashed, err := auth.HashPassword(password)
	require.NoError(t, err, "Не удалось хешировать пароль")

	phone := UniquePhone()
	user := &models.User{
		Name:         name,
		Email:        email,
		Phone:        &phone,
		PasswordHash: hashed,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error, "Не удалось создать пользователя %s", email)
	return user
}

// CreateAndLoginUser создает пользователя и логинит его через API
func CreateAndLoginUser(t *testing.T, ts *TestServer, name, email, password string, role models.UserRole) (string, *models.User) {
	t.Helper()

	user := CreateUser(t, ts.DB, name, email, password, role)

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, "Логин должен быть успешным. Ответ: "+body)

	var loginResponse dto.AuthResponse
	DecodeJSON(t, body, &loginResponse)
	require.NotEmpty(t, loginResponse.AccessToken, "Токен не должен быть пустым")

	return loginResponse.AccessToken, user
}

// CreateAndLoginCustomer - покупатель с адресом доставки, готовый к покупке
func CreateAndLoginCustomer(t *testing.T, ts *TestServer) (string, *models.User) {
	t.Helper()

	token, user := CreateAndLoginUser(t, ts, "Test Customer", UniqueEmail("customer"), DefaultPassword, models.UserRoleCustomer)

	res, body := ts.SendRequest(t, http.MethodPut, "/api/v1/users/me/address", token, map[string]interface{}{
		"line1":   "12 MG Road",
		"city":    "Pune",
		"pincode": "411001",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, "Адрес должен сохраниться. Ответ: "+body)

	return token, user
}

// CreateAndLoginAdmin - администратор
func CreateAndLoginAdmin(t *testing.T, ts *TestServer) (string, *models.User) {
	t.Helper()
	return CreateAndLoginUser(t, ts, "Test Admin", UniqueEmail("admin"), DefaultPassword, models.UserRoleAdmin)
}

// CreatePlan добавляет активный тариф
func CreatePlan(t *testing.T, db *gorm.DB, duration string, price float64) *models.Plan {
	t.Helper()

	plan := &models.Plan{
		Name:             "Cow Milk " + duration,
		SubscriptionType: "cow_milk",
		Duration:         duration,
		Price:            price,
		Currency:         "INR",
		QuantityLitres:   1,
		IsActive:         true,
	}
	require.NoError(t, db.Create(plan).Error, "Не удалось создать тариф")
	return plan
}

// Purchase проходит заказ и подтверждение оплаты с корректной подписью
func Purchase(t *testing.T, ts *TestServer, token, planID string) dto.SubscriptionResponse {
	t.Helper()

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/orders", token, map[string]interface{}{
		"plan_id": planID,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, "Заказ должен создаться. Ответ: "+body)

	var order dto.OrderResponse
	DecodeJSON(t, body, &order)

	paymentID := fmt.Sprintf("pay_test_%d", seq.Add(1))
	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/verify", token, map[string]interface{}{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  CheckoutSignature(order.OrderID, paymentID),
	})
	require.Equal(t, http.StatusOK, res.StatusCode, "Оплата должна подтвердиться. Ответ: "+body)

	var sub dto.SubscriptionResponse
	DecodeJSON(t, body, &sub)
	return sub
}

// CheckoutSignature - подпись, которую checkout отдает клиенту
func CheckoutSignature(orderID, paymentID string) string {
	return payments.Sign([]byte(orderID+"|"+paymentID), TestKeySecret)
}
