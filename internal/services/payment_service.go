package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/email"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/metrics"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/payments"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentService interface {
	CreateOrder(db *gorm.DB, userID string, req *dto.CreateOrderRequest, now time.Time) (*dto.OrderResponse, error)
	VerifyPayment(db *gorm.DB, userID string, req *dto.VerifyPaymentRequest, now time.Time) (*dto.SubscriptionResponse, error)
	HandleWebhook(db *gorm.DB, body []byte, signature string, now time.Time) error
	History(db *gorm.DB, userID string) ([]dto.PaymentDTO, error)
}

// PaymentSecrets - ключи шлюза для проверки подписей
type PaymentSecrets struct {
	KeySecret     string
	WebhookSecret string
	Currency      string
}

type PaymentServiceImpl struct {
	gateway          payments.Gateway
	secrets          PaymentSecrets
	paymentRepo      repositories.PaymentRepository
	planRepo         repositories.PlanRepository
	addressRepo      repositories.AddressRepository
	userRepo         repositories.UserRepository
	subscriptionRepo repositories.SubscriptionRepository
	eventRepo        repositories.EventRepository
	emailProvider    email.Provider
	calc             lifecycle.Calculator
	metrics          *metrics.Metrics
	alert            OperatorAlert
}

func NewPaymentService(
	gateway payments.Gateway,
	secrets PaymentSecrets,
	paymentRepo repositories.PaymentRepository,
	planRepo repositories.PlanRepository,
	addressRepo repositories.AddressRepository,
	userRepo repositories.UserRepository,
	subscriptionRepo repositories.SubscriptionRepository,
	eventRepo repositories.EventRepository,
	emailProvider email.Provider,
	calc lifecycle.Calculator,
	m *metrics.Metrics,
	alert OperatorAlert,
) PaymentService {
	if secrets.Currency == "" {
		secrets.Currency = "INR"
	}
	return &PaymentServiceImpl{
		gateway:          gateway,
		secrets:          secrets,
		paymentRepo:      paymentRepo,
		planRepo:         planRepo,
		addressRepo:      addressRepo,
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		eventRepo:        eventRepo,
		emailProvider:    emailProvider,
		calc:             calc,
		metrics:          m,
		alert:            alert,
	}
}

// CreateOrder - заказ в шлюзе под выбранный тариф
func (s *PaymentServiceImpl) CreateOrder(db *gorm.DB, userID string, req *dto.CreateOrderRequest, now time.Time) (*dto.OrderResponse, error) {
	ctx := ctxOf(db)

	plan, err := s.planRepo.FindByID(db, req.PlanID)
	if err != nil {
		return nil, handlePlanError(err)
	}
	if !plan.IsActive {
		return nil, apperrors.ErrPlanInactive
	}

	if _, err := s.addressRepo.FindByUserID(db, userID); err != nil {
		if errors.Is(err, repositories.ErrAddressNotFound) {
			return nil, apperrors.ErrAddressRequired
		}
		return nil, apperrors.InternalError(err)
	}

	open, err := s.subscriptionRepo.FindOpenByUserID(db, userID)
	if err != nil && !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return nil, apperrors.InternalError(err)
	}
	if open != nil {
		status := s.calc.EffectiveStatus(open.ToLifecycle(), now)
		if status == models.SubscriptionStatusActive || status == models.SubscriptionStatusPaused {
			return nil, apperrors.ErrSubscriptionExists
		}
	}

	currency := plan.Currency
	if currency == "" {
		currency = s.secrets.Currency
	}

	receipt := uuid.NewString()
	order, err := s.gateway.CreateOrder(ctx, payments.OrderRequest{
		Amount:   plan.Price,
		Currency: currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"user_id": userID,
			"plan_id": plan.ID,
		},
	})
	if err != nil {
		s.metrics.IncPayment("gateway_error")
		logger.CtxWithError(ctx, "Failed to create gateway order", err, "plan_id", plan.ID)
		return nil, apperrors.ErrExternalService(err, "payment")
	}

	payment := &models.PaymentTransaction{
		BaseModel: models.BaseModel{ID: receipt},
		UserID:    userID,
		PlanID:    plan.ID,
		OrderID:   order.ID,
		Amount:    plan.Price,
		Currency:  currency,
		Status:    models.PaymentStatusCreated,
	}
	if raw, err := json.Marshal(order.Raw); err == nil && order.Raw != nil {
		payment.GatewayPayload = datatypes.JSON(raw)
	}
	if err := s.paymentRepo.Create(db, payment); err != nil {
		return nil, apperrors.InternalError(err)
	}

	s.metrics.IncPayment(string(models.PaymentStatusCreated))
	logger.CtxInfo(ctx, "Order created", "order_id", order.ID, "plan_id", plan.ID, "amount", plan.Price)

	return &dto.OrderResponse{
		OrderID:     order.ID,
		Amount:      plan.Price,
		AmountPaise: payments.ToPaise(plan.Price),
		Currency:    currency,
		KeyID:       s.gateway.KeyID(),
		PlanID:      plan.ID,
	}, nil
}

// VerifyPayment проверяет подпись checkout и выдает подписку. Повторный вызов для
// оплаченного заказа возвращает уже созданную подписку.
func (s *PaymentServiceImpl) VerifyPayment(db *gorm.DB, userID string, req *dto.VerifyPaymentRequest, now time.Time) (*dto.SubscriptionResponse, error) {
	ctx := ctxOf(db)

	if !payments.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature, s.secrets.KeySecret) {
		logger.CtxWarn(ctx, "Invalid payment signature", "order_id", req.OrderID)
		if err := s.markFailed(db, userID, req.OrderID, req.PaymentID); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrInvalidSignature
	}

	sub, created, err := s.completeOrder(db, userID, req.OrderID, req.PaymentID, nil, now)
	if err != nil {
		return nil, err
	}
	if created {
		s.notifyPurchase(db, sub)
	}
	return dto.NewSubscriptionResponse(sub, s.calc.Describe(sub.ToLifecycle(), now)), nil
}

// HandleWebhook обрабатывает payment.captured; остальные события игнорируются
func (s *PaymentServiceImpl) HandleWebhook(db *gorm.DB, body []byte, signature string, now time.Time) error {
	ctx := ctxOf(db)

	if !payments.VerifyWebhookSignature(body, signature, s.secrets.WebhookSecret) {
		logger.CtxWarn(ctx, "Invalid webhook signature")
		return apperrors.ErrInvalidSignature
	}

	event, err := payments.ParseWebhookEvent(body)
	if err != nil {
		return apperrors.NewBadRequestError("Invalid webhook payload")
	}
	if event.Event != payments.EventPaymentCaptured {
		logger.CtxDebug(ctx, "Webhook event ignored", "event", event.Event)
		return nil
	}

	entity := event.Payload.Payment.Entity
	sub, created, err := s.completeOrder(db, "", entity.OrderID, entity.ID, body, now)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrOrderNotFound) {
			logger.CtxWarn(ctx, "Webhook for unknown order", "order_id", entity.OrderID)
			return nil
		}
		// платеж уже зафиксирован для возврата, повторять доставку шлюзу незачем
		if apperrors.Is(err, apperrors.ErrPaymentRefundRequired) {
			return nil
		}
		return err
	}
	if created {
		s.notifyPurchase(db, sub)
	}
	return nil
}

// completeOrder помечает транзакцию оплаченной и создает подписку в одной транзакции.
// userID == "" - вызов из вебхука, владелец не проверяется.
// Если у пользователя уже есть действующая подписка, оплата фиксируется как refund_required.
func (s *PaymentServiceImpl) completeOrder(db *gorm.DB, userID, orderID, paymentID string, payload []byte, now time.Time) (*models.Subscription, bool, error) {
	ctx := ctxOf(db)

	var (
		sub      *models.Subscription
		created  bool
		refund   bool
		toRefund *models.PaymentTransaction
		running  *models.Subscription
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.paymentRepo.FindByOrderIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if userID != "" && payment.UserID != userID {
			return repositories.ErrPaymentNotFound
		}

		switch payment.Status {
		case models.PaymentStatusPaid:
			if payment.SubscriptionID == nil {
				return apperrors.ErrCorruptState(errors.New("paid order without subscription"))
			}
			sub, err = s.subscriptionRepo.FindByID(tx, *payment.SubscriptionID)
			return err
		case models.PaymentStatusFailed:
			return apperrors.ErrPaymentFailed
		case models.PaymentStatusRefundRequired:
			refund = true
			return nil
		}

		// у пользователя не больше одной открытой подписки: просроченную закрываем здесь же
		open, err := s.closeStale(tx, payment.UserID, now)
		if err != nil {
			return err
		}
		if open != nil {
			refund = true
			toRefund, running = payment, open
			return s.markRefundRequired(tx, payment, paymentID, payload, now)
		}

		plan, err := s.planRepo.FindByID(tx, payment.PlanID)
		if err != nil {
			return err
		}

		if _, ok := lifecycle.ParseDuration(plan.Duration); !ok {
			logger.CtxWarn(ctx, "Malformed plan duration, using default",
				"plan_id", plan.ID, "duration", plan.Duration, "default_days", lifecycle.DefaultDurationDays)
		}

		sub = &models.Subscription{
			UserID:           payment.UserID,
			PlanID:           plan.ID,
			Status:           models.SubscriptionStatusActive,
			SubscriptionType: plan.SubscriptionType,
			Duration:         plan.Duration,
			QuantityLitres:   plan.QuantityLitres,
			Amount:           payment.Amount,
			OrderID:          payment.OrderID,
			PaymentID:        paymentID,
			StartDate:        s.calc.StartOfDay(now),
			EndDate:          s.calc.ComputeEndDate(now, plan.Duration),
		}
		if err := s.subscriptionRepo.Create(tx, sub); err != nil {
			return err
		}
		sub.Plan = plan

		paidAt := now
		payment.Status = models.PaymentStatusPaid
		payment.PaymentID = paymentID
		payment.PaidAt = &paidAt
		payment.SubscriptionID = &sub.ID
		if payload != nil {
			payment.GatewayPayload = datatypes.JSON(payload)
		}
		if err := s.paymentRepo.Update(tx, payment); err != nil {
			return err
		}

		details, err := json.Marshal(map[string]interface{}{
			"order_id":   payment.OrderID,
			"payment_id": paymentID,
			"amount":     payment.Amount,
		})
		if err != nil {
			return fmt.Errorf("marshal purchase details: %w", err)
		}
		created = true
		return s.eventRepo.Create(tx, newEvent(sub, models.ActionPurchased, "", datatypes.JSON(details)))
	})
	if err != nil {
		return nil, false, handlePaymentError(err)
	}

	if refund {
		if toRefund != nil {
			s.reportRefund(ctx, toRefund, running)
		}
		return nil, false, apperrors.ErrPaymentRefundRequired
	}

	if created {
		s.metrics.IncPayment(string(models.PaymentStatusPaid))
		s.metrics.IncTransition(string(models.ActionPurchased))
		planName := ""
		if sub.Plan != nil {
			planName = sub.Plan.Name
		}
		s.metrics.ObservePaymentAmount(planName, sub.Amount)
		logger.SubscriptionLog(ctx, string(models.ActionPurchased), sub.ID, "", string(sub.Status),
			"order_id", orderID, "end_date", sub.EndDate)
	}
	return sub, created, nil
}

// closeStale переводит просроченную active-подписку в expired.
// Возвращает действующую открытую подписку, если она есть.
func (s *PaymentServiceImpl) closeStale(tx *gorm.DB, userID string, now time.Time) (*models.Subscription, error) {
	open, err := s.subscriptionRepo.FindOpenByUserID(tx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if _, changed := s.calc.Expire(open.ToLifecycle(), now); !changed {
		return open, nil
	}

	n, err := s.subscriptionRepo.ExpireByIDs(tx, []string{open.ID})
	if err != nil || n == 0 {
		return nil, err
	}
	from := open.Status
	open.Status = models.SubscriptionStatusExpired
	s.metrics.AddExpired("purchase", n)
	return nil, s.eventRepo.Create(tx, newEvent(open, models.ActionExpired, from, nil))
}

// markRefundRequired сохраняет факт оплаты без выдачи подписки
func (s *PaymentServiceImpl) markRefundRequired(tx *gorm.DB, payment *models.PaymentTransaction, paymentID string, payload []byte, now time.Time) error {
	paidAt := now
	payment.Status = models.PaymentStatusRefundRequired
	payment.PaymentID = paymentID
	payment.PaidAt = &paidAt
	if payload != nil {
		payment.GatewayPayload = datatypes.JSON(payload)
	}
	return s.paymentRepo.Update(tx, payment)
}

// reportRefund - метрика, лог и письмо оператору о платеже под возврат
func (s *PaymentServiceImpl) reportRefund(ctx context.Context, payment *models.PaymentTransaction, running *models.Subscription) {
	s.metrics.IncPayment(string(models.PaymentStatusRefundRequired))
	logger.CtxError(ctx, "Payment captured while subscription is running, refund required",
		"order_id", payment.OrderID, "payment_id", payment.PaymentID,
		"user_id", payment.UserID, "subscription_id", running.ID)

	s.alert.send(ctx, "Payment needs refund", email.TemplateRefund, email.TemplateData{
		"OrderID":        payment.OrderID,
		"PaymentID":      payment.PaymentID,
		"UserID":         payment.UserID,
		"SubscriptionID": running.ID,
		"Amount":         payment.Amount,
		"Currency":       payment.Currency,
	})
}

// markFailed - только для заказа в статусе created, принадлежащего пользователю
func (s *PaymentServiceImpl) markFailed(db *gorm.DB, userID, orderID, paymentID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.paymentRepo.FindByOrderIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if payment.UserID != userID {
			return repositories.ErrPaymentNotFound
		}
		if payment.Status != models.PaymentStatusCreated {
			return nil
		}
		payment.Status = models.PaymentStatusFailed
		payment.PaymentID = paymentID
		return s.paymentRepo.Update(tx, payment)
	})
	if err != nil {
		return handlePaymentError(err)
	}
	s.metrics.IncPayment(string(models.PaymentStatusFailed))
	return nil
}

func (s *PaymentServiceImpl) History(db *gorm.DB, userID string) ([]dto.PaymentDTO, error) {
	list, err := s.paymentRepo.FindByUserID(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	result := make([]dto.PaymentDTO, 0, len(list))
	for i := range list {
		result = append(result, dto.NewPaymentDTO(&list[i]))
	}
	return result, nil
}

// notifyPurchase - письмо-подтверждение; ошибка не влияет на покупку
func (s *PaymentServiceImpl) notifyPurchase(db *gorm.DB, sub *models.Subscription) {
	if s.emailProvider == nil {
		return
	}
	ctx := ctxOf(db)

	user, err := s.userRepo.FindByID(db, sub.UserID)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to load user for purchase email", err, "user_id", sub.UserID)
		return
	}

	planName := sub.SubscriptionType
	if sub.Plan != nil {
		planName = sub.Plan.Name
	}

	err = s.emailProvider.SendTemplate(
		[]string{user.Email},
		"Your milk subscription is active",
		email.TemplatePurchased,
		email.TemplateData{
			"Name":      user.Name,
			"Plan":      planName,
			"StartDate": sub.StartDate.In(s.calc.Location).Format("02 Jan 2006"),
			"EndDate":   sub.EndDate.In(s.calc.Location).Format("02 Jan 2006"),
		},
	)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to send purchase email", err, "user_id", user.ID)
	}
}

func handlePaymentError(err error) error {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, repositories.ErrPaymentNotFound):
		return apperrors.ErrOrderNotFound
	case errors.Is(err, repositories.ErrPlanNotFound):
		return apperrors.ErrPlanNotFound
	case errors.Is(err, repositories.ErrSubscriptionNotFound):
		return apperrors.ErrSubscriptionNotFound
	default:
		return apperrors.InternalError(err)
	}
}
