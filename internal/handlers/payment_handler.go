package handlers

import (
	"io"
	"net/http"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/middleware"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	webhookSignatureHeader = "X-Razorpay-Signature"
	maxWebhookBody         = 1 << 20
)

type PaymentHandler struct {
	*BaseHandler
	paymentService services.PaymentService
}

func NewPaymentHandler(base *BaseHandler, paymentService services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    base,
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		// Вебхук без JWT: подлинность проверяется подписью шлюза
		payments.POST("/webhook", h.Webhook)

		authed := payments.Group("")
		authed.Use(middleware.AuthMiddleware())
		authed.POST("/orders", h.CreateOrder)
		authed.POST("/verify", h.VerifyPayment)
		authed.GET("/history", h.GetHistory)
	}
}

// CreateOrder godoc
// @Summary Создать заказ в Razorpay на покупку тарифа
// @Tags payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateOrderRequest true "Тариф"
// @Success 201 {object} dto.OrderResponse
// @Failure 400 {object} apperrors.ErrorResponse "Тариф неактивен или нет адреса"
// @Failure 409 {object} apperrors.ErrorResponse "Уже есть активная подписка"
// @Failure 502 {object} apperrors.ErrorResponse
// @Router /payments/orders [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	order, err := h.paymentService.CreateOrder(h.GetDB(c), userID, &req, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// VerifyPayment godoc
// @Summary Подтвердить оплату и активировать подписку
// @Tags payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.VerifyPaymentRequest true "Ответ checkout"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} apperrors.ErrorResponse "Неверная подпись"
// @Failure 409 {object} apperrors.ErrorResponse "Заказ не оплачен или оплата ждет возврата"
// @Router /payments/verify [post]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.VerifyPaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	sub, err := h.paymentService.VerifyPayment(h.GetDB(c), userID, &req, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *PaymentHandler) GetHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	history, err := h.paymentService.History(h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// Webhook godoc
// @Summary Вебхук Razorpay (payment.captured)
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC-SHA256 тела"
// @Success 200 {object} map[string]string
// @Failure 400 {object} apperrors.ErrorResponse
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.CtxWithError(c.Request.Context(), "Failed to read webhook body", err)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid webhook body"))
		return
	}

	signature := c.GetHeader(webhookSignatureHeader)
	if signature == "" {
		apperrors.HandleError(c, apperrors.ErrInvalidSignature)
		return
	}

	if err := h.paymentService.HandleWebhook(h.GetDB(c), body, signature, h.Now()); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
