package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/email"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/metrics"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubscriptionService interface {
	GetCurrent(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error)
	Pause(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error)
	Resume(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error)
	Cancel(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error)
	History(db *gorm.DB, userID string, now time.Time) ([]*dto.SubscriptionResponse, error)

	// Admin
	ForceCancel(db *gorm.DB, subscriptionID string, now time.Time) (*dto.SubscriptionResponse, error)
	ExpireStale(db *gorm.DB, now time.Time, source string) (*dto.ExpireResult, error)
	List(db *gorm.DB, filter dto.AdminSubscriptionFilter, page, pageSize int, now time.Time) (*dto.PaginatedResponse, error)
	Inspect(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionInspection, error)
}

// OperatorAlert - куда уходит сообщение о битой подписке
type OperatorAlert struct {
	Provider email.Provider
	To       string
}

type SubscriptionServiceImpl struct {
	subscriptionRepo repositories.SubscriptionRepository
	eventRepo        repositories.EventRepository
	userRepo         repositories.UserRepository
	calc             lifecycle.Calculator
	metrics          *metrics.Metrics
	alert            OperatorAlert
}

func NewSubscriptionService(
	subscriptionRepo repositories.SubscriptionRepository,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	calc lifecycle.Calculator,
	m *metrics.Metrics,
	alert OperatorAlert,
) SubscriptionService {
	return &SubscriptionServiceImpl{
		subscriptionRepo: subscriptionRepo,
		eventRepo:        eventRepo,
		userRepo:         userRepo,
		calc:             calc,
		metrics:          m,
		alert:            alert,
	}
}

// loader достает строку подписки под блокировкой внутри транзакции
type loader func(tx *gorm.DB) (*models.Subscription, error)

type transitionFunc func(sub lifecycle.Subscription, now time.Time) (lifecycle.Subscription, error)

// GetCurrent - текущая подписка с ленивым истечением
func (s *SubscriptionServiceImpl) GetCurrent(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error) {
	ctx := ctxOf(db)

	sub, err := s.subscriptionRepo.FindLatestByUserID(db, userID)
	if err != nil {
		return nil, handleSubscriptionError(err)
	}

	if err := s.calc.Validate(sub.ToLifecycle()); err != nil {
		s.metrics.IncCorruptState("read")
		logger.CtxWithError(ctx, "Corrupt subscription on read", err, "subscription_id", sub.ID)
		return nil, apperrors.ErrCorruptState(err)
	}

	if _, changed := s.calc.Expire(sub.ToLifecycle(), now); changed {
		if err := db.Transaction(func(tx *gorm.DB) error {
			return s.persistExpiry(tx, sub)
		}); err != nil {
			return nil, apperrors.InternalError(err)
		}
	}

	return s.toResponse(sub, now), nil
}

func (s *SubscriptionServiceImpl) Pause(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error) {
	return s.transition(db, s.latestFor(userID), models.ActionPaused, s.calc.Pause, now)
}

func (s *SubscriptionServiceImpl) Resume(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error) {
	return s.transition(db, s.latestFor(userID), models.ActionResumed, s.calc.Resume, now)
}

func (s *SubscriptionServiceImpl) Cancel(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error) {
	return s.transition(db, s.latestFor(userID), models.ActionCancelled, s.calc.Cancel, now)
}

// ForceCancel - отмена оператором по id подписки
func (s *SubscriptionServiceImpl) ForceCancel(db *gorm.DB, subscriptionID string, now time.Time) (*dto.SubscriptionResponse, error) {
	load := func(tx *gorm.DB) (*models.Subscription, error) {
		return s.subscriptionRepo.FindByIDForUpdate(tx, subscriptionID)
	}
	return s.transition(db, load, models.ActionCancelled, s.calc.Cancel, now)
}

func (s *SubscriptionServiceImpl) latestFor(userID string) loader {
	return func(tx *gorm.DB) (*models.Subscription, error) {
		return s.subscriptionRepo.FindLatestByUserIDForUpdate(tx, userID)
	}
}

// transition - общий путь pause/resume/cancel: блокировка строки, ленивое истечение,
// переход калькулятора, сохранение и запись в журнал в одной транзакции
func (s *SubscriptionServiceImpl) transition(db *gorm.DB, load loader, action models.SubscriptionAction, apply transitionFunc, now time.Time) (*dto.SubscriptionResponse, error) {
	ctx := ctxOf(db)

	var (
		sub      *models.Subscription
		from     models.SubscriptionStatus
		rejected *lifecycle.TransitionError
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = load(tx)
		if err != nil {
			return err
		}

		current := sub.ToLifecycle()
		if err := s.calc.Validate(current); err != nil {
			return err
		}

		if _, changed := s.calc.Expire(current, now); changed {
			if err := s.persistExpiry(tx, sub); err != nil {
				return err
			}
			current = sub.ToLifecycle()
		}

		from = sub.Status
		next, err := apply(current, now)
		if err != nil {
			// отказ в переходе не должен откатывать сохраненное истечение
			if errors.As(err, &rejected) {
				return nil
			}
			return err
		}

		sub.ApplyLifecycle(next)
		if action == models.ActionCancelled {
			cancelledAt := now
			sub.CancelledAt = &cancelledAt
		}
		if err := s.subscriptionRepo.Save(tx, sub); err != nil {
			return err
		}

		event := newEvent(sub, action, from, s.eventDetails(action, current, next))
		return s.eventRepo.Create(tx, event)
	})

	if err != nil {
		return nil, s.transitionError(ctx, sub, string(action), err)
	}
	if rejected != nil {
		s.metrics.IncTransitionRejected(string(action), string(rejected.From))
		logger.CtxWarn(ctx, "Subscription transition rejected",
			"action", action, "subscription_id", sub.ID, "from_status", rejected.From)
		return nil, apperrors.ErrInvalidTransition(rejected)
	}

	s.metrics.IncTransition(string(action))
	logger.SubscriptionLog(ctx, string(action), sub.ID, string(from), string(sub.Status), "user_id", sub.UserID)
	return s.toResponse(sub, now), nil
}

func (s *SubscriptionServiceImpl) transitionError(ctx context.Context, sub *models.Subscription, action string, err error) error {
	if errors.Is(err, lifecycle.ErrCorruptState) {
		s.metrics.IncCorruptState(action)
		logger.CtxWithError(ctx, "Corrupt subscription state", err, "action", action, "subscription_id", sub.ID)
		s.alertOperator(ctx, sub, action, err)
		return apperrors.ErrCorruptState(err)
	}
	return handleSubscriptionError(err)
}

// persistExpiry переводит active -> expired условным UPDATE и пишет событие
func (s *SubscriptionServiceImpl) persistExpiry(tx *gorm.DB, sub *models.Subscription) error {
	n, err := s.subscriptionRepo.ExpireByIDs(tx, []string{sub.ID})
	if err != nil {
		return err
	}
	from := sub.Status
	sub.Status = models.SubscriptionStatusExpired
	if n == 0 {
		return nil
	}

	logger.SubscriptionLog(ctxOf(tx), string(models.ActionExpired), sub.ID, string(from), string(sub.Status), "source", "lazy")
	s.metrics.AddExpired("lazy", 1)
	return s.eventRepo.Create(tx, newEvent(sub, models.ActionExpired, from, nil))
}

// ExpireStale - пакетное истечение (воркер, CLI, админка)
func (s *SubscriptionServiceImpl) ExpireStale(db *gorm.DB, now time.Time, source string) (*dto.ExpireResult, error) {
	var expired int64

	err := db.Transaction(func(tx *gorm.DB) error {
		stale, err := s.subscriptionRepo.FindStale(tx, now)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}

		ids := make([]string, 0, len(stale))
		events := make([]models.SubscriptionEvent, 0, len(stale))
		for i := range stale {
			ids = append(ids, stale[i].ID)
			stale[i].Status = models.SubscriptionStatusExpired
			events = append(events, *newEvent(&stale[i], models.ActionExpired, models.SubscriptionStatusActive, nil))
		}

		expired, err = s.subscriptionRepo.ExpireByIDs(tx, ids)
		if err != nil {
			return err
		}
		return s.eventRepo.CreateBatch(tx, events)
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	s.metrics.AddExpired(source, expired)
	if expired > 0 {
		logger.CtxInfo(ctxOf(db), "Expired stale subscriptions", "count", expired, "source", source)
	}

	return &dto.ExpireResult{Expired: expired, RanAt: now}, nil
}

func (s *SubscriptionServiceImpl) History(db *gorm.DB, userID string, now time.Time) ([]*dto.SubscriptionResponse, error) {
	subs, err := s.subscriptionRepo.FindByUserID(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := make([]*dto.SubscriptionResponse, 0, len(subs))
	for i := range subs {
		result = append(result, s.toResponse(&subs[i], now))
	}
	return result, nil
}

func (s *SubscriptionServiceImpl) List(db *gorm.DB, filter dto.AdminSubscriptionFilter, page, pageSize int, now time.Time) (*dto.PaginatedResponse, error) {
	subs, total, err := s.subscriptionRepo.List(db, repositories.SubscriptionFilter{
		Status:   models.SubscriptionStatus(filter.Status),
		UserID:   filter.UserID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	items := make([]*dto.SubscriptionResponse, 0, len(subs))
	for i := range subs {
		items = append(items, s.toResponse(&subs[i], now))
	}
	return dto.NewPaginatedResponse(items, total, page, pageSize), nil
}

// Inspect собирает все по подписке пользователя, включая причину порчи данных
func (s *SubscriptionServiceImpl) Inspect(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionInspection, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		return nil, handleUserError(err)
	}

	result := &dto.SubscriptionInspection{
		User:    dto.NewUserDTO(user),
		Events:  []dto.SubscriptionEventDTO{},
		History: []*dto.SubscriptionResponse{},
	}

	history, err := s.History(db, userID, now)
	if err != nil {
		return nil, err
	}
	result.History = history

	latest, err := s.subscriptionRepo.FindLatestByUserID(db, userID)
	if errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if verr := s.calc.Validate(latest.ToLifecycle()); verr != nil {
		result.CorruptState = verr.Error()
	}
	result.Current = s.toResponse(latest, now)

	events, err := s.eventRepo.FindBySubscriptionID(db, latest.ID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	for _, e := range events {
		result.Events = append(result.Events, dto.SubscriptionEventDTO{
			Action:     e.Action,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			CreatedAt:  e.CreatedAt,
		})
	}

	return result, nil
}

func (s *SubscriptionServiceImpl) toResponse(sub *models.Subscription, now time.Time) *dto.SubscriptionResponse {
	return dto.NewSubscriptionResponse(sub, s.calc.Describe(sub.ToLifecycle(), now))
}

func (s *SubscriptionServiceImpl) eventDetails(action models.SubscriptionAction, before, after lifecycle.Subscription) datatypes.JSON {
	if action != models.ActionResumed {
		return nil
	}
	details := map[string]interface{}{
		"paused_days":       after.TotalPausedDays - before.TotalPausedDays,
		"previous_end_date": before.EndDate,
		"end_date":          after.EndDate,
		"total_paused_days": after.TotalPausedDays,
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// send шлет письмо оператору; ошибка отправки только логируется
func (a OperatorAlert) send(ctx context.Context, subject, templateName string, data email.TemplateData) {
	if a.Provider == nil || a.To == "" {
		return
	}
	if err := a.Provider.SendTemplate([]string{a.To}, subject, templateName, data); err != nil {
		logger.CtxWithError(ctx, "Failed to send operator alert", err, "template", templateName)
	}
}

func (s *SubscriptionServiceImpl) alertOperator(ctx context.Context, sub *models.Subscription, action string, cause error) {
	if sub == nil {
		return
	}
	s.alert.send(ctx, "Subscription needs manual repair", email.TemplateOperatorAlert, email.TemplateData{
		"SubscriptionID": sub.ID,
		"UserID":         sub.UserID,
		"Operation":      action,
		"Reason":         cause.Error(),
	})
}

func newEvent(sub *models.Subscription, action models.SubscriptionAction, from models.SubscriptionStatus, details datatypes.JSON) *models.SubscriptionEvent {
	return &models.SubscriptionEvent{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Action:         action,
		FromStatus:     from,
		ToStatus:       sub.Status,
		Details:        details,
	}
}

func handleSubscriptionError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrSubscriptionNotFound):
		return apperrors.ErrSubscriptionNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return apperrors.ErrInvalidTransition(err)
	case errors.Is(err, lifecycle.ErrCorruptState):
		return apperrors.ErrCorruptState(err)
	default:
		return apperrors.InternalError(err)
	}
}
