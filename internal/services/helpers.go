package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"gorm.io/gorm"
)

// ctxOf достает context запроса, который DBMiddleware положил в *gorm.DB
func ctxOf(db *gorm.DB) context.Context {
	if db != nil && db.Statement != nil && db.Statement.Context != nil {
		return db.Statement.Context
	}
	return context.Background()
}

func handleUserError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return apperrors.ErrUserNotFound
	case errors.Is(err, repositories.ErrUserAlreadyExists):
		return apperrors.ErrEmailAlreadyExists
	case errors.Is(err, repositories.ErrPhoneAlreadyExists):
		return apperrors.ErrPhoneAlreadyExists
	default:
		return apperrors.InternalError(err)
	}
}

// randomToken - n случайных байт в hex
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
