package services

import (
	"errors"
	"strings"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/auth"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"gorm.io/gorm"
)

type AuthService interface {
	Register(db *gorm.DB, req *dto.RegisterRequest) (*dto.UserDTO, error)
	Login(db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error)
	RefreshToken(db *gorm.DB, refreshToken string) (*dto.AuthResponse, error)
	Logout(db *gorm.DB, refreshToken string) error
}

type AuthServiceImpl struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	accessTTL        time.Duration
	refreshTTL       time.Duration
}

func NewAuthService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthServiceImpl{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		accessTTL:        accessTTL,
		refreshTTL:       refreshTTL,
	}
}

// Register - регистрация покупателя
func (s *AuthServiceImpl) Register(db *gorm.DB, req *dto.RegisterRequest) (*dto.UserDTO, error) {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hashedPassword,
		Role:         models.UserRoleCustomer,
		Status:       models.UserStatusActive,
	}
	if req.Phone != "" {
		phone := req.Phone
		user.Phone = &phone
	}

	if err := s.userRepo.Create(db, user); err != nil {
		return nil, handleUserError(err)
	}

	logger.CtxInfo(ctxOf(db), "User registered", "user_id", user.ID)
	result := dto.NewUserDTO(user)
	return &result, nil
}

// Login - аутентификация по email и паролю
func (s *AuthServiceImpl) Login(db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(db, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.InternalError(err)
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := checkUserStatus(user); err != nil {
		return nil, err
	}

	refreshToken, err := s.createRefreshToken(db, user.ID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return s.buildAuthResponse(user, refreshToken)
}

// RefreshToken - новый access token и ротация refresh token
func (s *AuthServiceImpl) RefreshToken(db *gorm.DB, refreshToken string) (*dto.AuthResponse, error) {
	var (
		user     *models.User
		newToken string
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		token, err := s.refreshTokenRepo.FindByToken(tx, refreshToken)
		if err != nil {
			return apperrors.ErrInvalidToken
		}

		// удаление до проверки срока: токен одноразовый в любом случае
		if err := s.refreshTokenRepo.DeleteByToken(tx, refreshToken); err != nil {
			return apperrors.ErrInvalidToken
		}
		if time.Now().After(token.ExpiresAt) {
			return nil
		}

		user, err = s.userRepo.FindByID(tx, token.UserID)
		if err != nil {
			return apperrors.ErrInvalidToken
		}
		if err := checkUserStatus(user); err != nil {
			return err
		}

		newToken, err = s.createRefreshToken(tx, user.ID)
		return err
	})
	if err != nil {
		return nil, handleAuthError(err)
	}
	if user == nil {
		return nil, apperrors.ErrInvalidToken
	}

	return s.buildAuthResponse(user, newToken)
}

// Logout удаляет refresh token; неизвестный токен не считается ошибкой
func (s *AuthServiceImpl) Logout(db *gorm.DB, refreshToken string) error {
	err := s.refreshTokenRepo.DeleteByToken(db, refreshToken)
	if err != nil && !errors.Is(err, repositories.ErrRefreshTokenNotFound) {
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *AuthServiceImpl) createRefreshToken(db *gorm.DB, userID string) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}

	model := &models.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.refreshTTL).UTC(),
	}
	if err := s.refreshTokenRepo.Create(db, model); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthServiceImpl) buildAuthResponse(user *models.User, refreshToken string) (*dto.AuthResponse, error) {
	accessToken, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         dto.NewUserDTO(user),
	}, nil
}

// checkUserStatus - заблокированный пользователь не входит
func checkUserStatus(user *models.User) error {
	if user.Status == models.UserStatusBlocked {
		return apperrors.ErrUserBlocked
	}
	return nil
}

func handleAuthError(err error) error {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		return appErr
	}
	return apperrors.InternalError(err)
}
