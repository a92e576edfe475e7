package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/email"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/metrics"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/otp"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"gorm.io/gorm"
)

const (
	DefaultOTPTTL         = 5 * time.Minute
	DefaultOTPMaxAttempts = 5
	otpDigits             = 6
)

type OTPService interface {
	RequestOTP(ctx context.Context, db *gorm.DB, req *dto.OTPRequest) (*dto.OTPResponse, error)
	VerifyOTP(ctx context.Context, db *gorm.DB, req *dto.OTPVerifyRequest) error
}

type OTPServiceImpl struct {
	store         otp.Store
	userRepo      repositories.UserRepository
	emailProvider email.Provider
	metrics       *metrics.Metrics
	ttl           time.Duration
	maxAttempts   int
	now           func() time.Time
}

func NewOTPService(
	store otp.Store,
	userRepo repositories.UserRepository,
	emailProvider email.Provider,
	m *metrics.Metrics,
	ttl time.Duration,
	maxAttempts int,
) OTPService {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultOTPMaxAttempts
	}
	return &OTPServiceImpl{
		store:         store,
		userRepo:      userRepo,
		emailProvider: emailProvider,
		metrics:       m,
		ttl:           ttl,
		maxAttempts:   maxAttempts,
		now:           time.Now,
	}
}

// RequestOTP выдает новый код и отправляет его на email владельца телефона
func (s *OTPServiceImpl) RequestOTP(ctx context.Context, db *gorm.DB, req *dto.OTPRequest) (*dto.OTPResponse, error) {
	user, err := s.userRepo.FindByPhone(db, req.Phone)
	if err != nil {
		return nil, handleUserError(err)
	}

	code, err := generateOTP()
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	expiresAt := s.now().Add(s.ttl)
	if err := s.store.Set(ctx, otp.Key(req.Phone), otp.Entry{Code: code, ExpiresAt: expiresAt}, s.ttl); err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("store otp: %w", err))
	}
	// новый код - новый счет попыток
	if err := s.store.Delete(ctx, otp.AttemptsKey(req.Phone)); err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("reset otp attempts: %w", err))
	}

	err = s.emailProvider.SendTemplate(
		[]string{user.Email},
		"Your verification code",
		email.TemplateOTP,
		email.TemplateData{
			"Name":    user.Name,
			"Code":    code,
			"Minutes": int(s.ttl.Minutes()),
		},
	)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to deliver OTP", err, "user_id", user.ID)
		return nil, apperrors.ErrExternalService(err, "otp")
	}

	s.metrics.IncOTPIssued()
	logger.CtxInfo(ctx, "OTP issued", "user_id", user.ID)

	return &dto.OTPResponse{
		Message:   "OTP sent to your registered email",
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyOTP сравнивает код за постоянное время; после maxAttempts неудач код сгорает.
// Попытка учитывается атомарным счетчиком до сравнения, поэтому параллельные запросы
// не получают больше maxAttempts попыток на один код.
func (s *OTPServiceImpl) VerifyOTP(ctx context.Context, db *gorm.DB, req *dto.OTPVerifyRequest) error {
	key := otp.Key(req.Phone)
	attemptsKey := otp.AttemptsKey(req.Phone)

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			s.metrics.IncOTPVerification("expired")
			return apperrors.ErrInvalidOTP
		}
		return apperrors.InternalError(err)
	}

	remaining := entry.ExpiresAt.Sub(s.now())
	if remaining < time.Second {
		remaining = time.Second
	}
	attempt, err := s.store.Incr(ctx, attemptsKey, remaining)
	if err != nil {
		return apperrors.InternalError(fmt.Errorf("count otp attempt: %w", err))
	}
	if attempt > int64(s.maxAttempts) {
		s.burn(ctx, key, attemptsKey)
		s.metrics.IncOTPVerification("locked")
		return apperrors.ErrTooManyOTPAttempts
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(req.Code)) != 1 {
		if attempt >= int64(s.maxAttempts) {
			s.burn(ctx, key, attemptsKey)
			s.metrics.IncOTPVerification("locked")
			return apperrors.ErrTooManyOTPAttempts
		}
		s.metrics.IncOTPVerification("invalid")
		return apperrors.ErrInvalidOTP
	}

	s.burn(ctx, key, attemptsKey)

	user, err := s.userRepo.FindByPhone(db, req.Phone)
	if err != nil {
		return handleUserError(err)
	}
	if err := s.userRepo.SetPhoneVerified(db, user.ID); err != nil {
		return handleUserError(err)
	}

	s.metrics.IncOTPVerification("ok")
	logger.CtxInfo(ctx, "Phone verified", "user_id", user.ID)
	return nil
}

// burn удаляет код вместе со счетчиком попыток
func (s *OTPServiceImpl) burn(ctx context.Context, key, attemptsKey string) {
	for _, k := range []string{key, attemptsKey} {
		if err := s.store.Delete(ctx, k); err != nil {
			logger.CtxWithError(ctx, "Failed to delete OTP key", err)
		}
	}
}

// generateOTP - 6 цифр из crypto/rand, с ведущими нулями
func generateOTP() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
