package services

import (
	"errors"
	"strings"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"gorm.io/gorm"
)

type UserService interface {
	GetMe(db *gorm.DB, userID string) (*dto.UserResponse, error)
	UpdateMe(db *gorm.DB, userID string, req *dto.UpdateUserRequest) (*dto.UserResponse, error)
	GetAddress(db *gorm.DB, userID string) (*dto.AddressDTO, error)
	UpsertAddress(db *gorm.DB, userID string, req *dto.AddressRequest) (*dto.AddressDTO, error)
}

type UserServiceImpl struct {
	userRepo    repositories.UserRepository
	addressRepo repositories.AddressRepository
}

func NewUserService(userRepo repositories.UserRepository, addressRepo repositories.AddressRepository) UserService {
	return &UserServiceImpl{
		userRepo:    userRepo,
		addressRepo: addressRepo,
	}
}

func (s *UserServiceImpl) GetMe(db *gorm.DB, userID string) (*dto.UserResponse, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		return nil, handleUserError(err)
	}
	return &dto.UserResponse{
		UserDTO: dto.NewUserDTO(user),
		Address: dto.NewAddressDTO(user.Address),
	}, nil
}

func (s *UserServiceImpl) UpdateMe(db *gorm.DB, userID string, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	var phone *string
	if req.Phone != nil {
		trimmed := strings.TrimSpace(*req.Phone)
		phone = &trimmed
	}

	if err := s.userRepo.UpdateProfile(db, userID, strings.TrimSpace(req.Name), phone); err != nil {
		return nil, handleUserError(err)
	}
	return s.GetMe(db, userID)
}

func (s *UserServiceImpl) GetAddress(db *gorm.DB, userID string) (*dto.AddressDTO, error) {
	address, err := s.addressRepo.FindByUserID(db, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrAddressNotFound) {
			return nil, apperrors.ErrAddressNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	return dto.NewAddressDTO(address), nil
}

func (s *UserServiceImpl) UpsertAddress(db *gorm.DB, userID string, req *dto.AddressRequest) (*dto.AddressDTO, error) {
	if _, err := s.userRepo.FindByID(db, userID); err != nil {
		return nil, handleUserError(err)
	}

	address := &models.Address{
		UserID:               userID,
		Line1:                strings.TrimSpace(req.Line1),
		Line2:                strings.TrimSpace(req.Line2),
		Landmark:             strings.TrimSpace(req.Landmark),
		City:                 strings.TrimSpace(req.City),
		Pincode:              req.Pincode,
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		DeliveryInstructions: req.DeliveryInstructions,
	}
	if err := s.addressRepo.Upsert(db, address); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return s.GetAddress(db, userID)
}
