package apperrors

import (
	"net/http"
)

/*
Этот файл содержит фабрики и предопределенные переменные
для общих ошибок бизнес-логики и домена.
*/

// =========================================================================
// Фабричные ФУНКЦИИ
// =========================================================================

// ErrInvalidTransition - переход подписки не разрешен в текущем статусе (400)
func ErrInvalidTransition(err error) *AppError {
	return Wrap(err, CodeInvalidStatus, "subscription", err.Error(), http.StatusBadRequest)
}

// ErrCorruptState - сохраненная подписка нарушает инварианты, нужен оператор (500)
func ErrCorruptState(err error) *AppError {
	return Wrap(err, CodeCorruptState, "subscription", "Subscription data is inconsistent, support has been notified", http.StatusInternalServerError)
}

// ErrExternalService - шлюз или почта недоступны (502)
func ErrExternalService(err error, domain string) *AppError {
	return Wrap(err, CodeExternalServiceError, domain, "External service unavailable", http.StatusBadGateway)
}

// =========================================================================
// Предопределенные ПЕРЕМЕННЫЕ (Для частых, статичных ошибок)
// =========================================================================

// ErrInsufficientPermissions - не-админ пытается выполнить админ-действие
var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)

// --- Auth & User Status ---

var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Email already in use",
	http.StatusConflict,
)

var ErrPhoneAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Phone number already in use",
	http.StatusConflict,
)

var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

// ErrInvalidToken - неверный или просроченный refresh-токен
var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

var ErrUserBlocked = New(
	CodeForbidden,
	"auth",
	"Your account has been blocked",
	http.StatusForbidden,
)

// --- OTP ---

var ErrInvalidOTP = New(
	CodeInvalidOTP,
	"otp",
	"Invalid or expired OTP",
	http.StatusBadRequest,
)

var ErrTooManyOTPAttempts = New(
	CodeTooManyAttempts,
	"otp",
	"Too many attempts, request a new OTP",
	http.StatusTooManyRequests,
)

// --- Users & Address ---

var ErrUserNotFound = New(
	CodeNotFound,
	"user",
	"User not found",
	http.StatusNotFound,
)

var ErrAddressRequired = New(
	CodeInvalidOperation,
	"address",
	"Delivery address is required before purchase",
	http.StatusBadRequest,
)

var ErrAddressNotFound = New(
	CodeNotFound,
	"address",
	"Address not found",
	http.StatusNotFound,
)

// --- Plans ---

var ErrPlanNotFound = New(
	CodeNotFound,
	"plan",
	"Plan not found",
	http.StatusNotFound,
)

var ErrPlanInactive = New(
	CodeInvalidOperation,
	"plan",
	"Plan is not available for purchase",
	http.StatusBadRequest,
)

// --- Subscriptions & Payments ---

var ErrSubscriptionNotFound = New(
	CodeNotFound,
	"subscription",
	"No subscription found",
	http.StatusNotFound,
)

// ErrSubscriptionExists - у пользователя уже есть активная или приостановленная подписка
var ErrSubscriptionExists = New(
	CodeConflict,
	"subscription",
	"You already have an active subscription",
	http.StatusConflict,
)

// ErrPaymentRefundRequired - оплата прошла, пока у пользователя уже была действующая подписка
var ErrPaymentRefundRequired = New(
	CodeRefundRequired,
	"payment",
	"Payment received, but you already have an active subscription. The amount will be refunded",
	http.StatusConflict,
)

var ErrOrderNotFound = New(
	CodeNotFound,
	"payment",
	"Order not found",
	http.StatusNotFound,
)

var ErrInvalidSignature = New(
	CodeInvalidSignature,
	"payment",
	"Payment signature verification failed",
	http.StatusBadRequest,
)

// ErrPaymentFailed - заказ уже помечен как неуспешный
var ErrPaymentFailed = New(
	CodePaymentFailed,
	"payment",
	"Payment has failed for this order",
	http.StatusConflict,
)
