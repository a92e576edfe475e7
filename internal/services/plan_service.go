package services

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PlanService interface {
	ListActive(db *gorm.DB) ([]dto.PlanResponse, error)
	ListAll(db *gorm.DB) ([]dto.PlanResponse, error)
	Get(db *gorm.DB, planID string) (*dto.PlanResponse, error)
	Create(db *gorm.DB, req *dto.PlanRequest) (*dto.PlanResponse, error)
	Update(db *gorm.DB, planID string, req *dto.PlanRequest) (*dto.PlanResponse, error)
	Deactivate(db *gorm.DB, planID string) error
}

type PlanServiceImpl struct {
	planRepo repositories.PlanRepository
}

func NewPlanService(planRepo repositories.PlanRepository) PlanService {
	return &PlanServiceImpl{planRepo: planRepo}
}

func (s *PlanServiceImpl) ListActive(db *gorm.DB) ([]dto.PlanResponse, error) {
	plans, err := s.planRepo.FindActive(db)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return toPlanResponses(plans), nil
}

func (s *PlanServiceImpl) ListAll(db *gorm.DB) ([]dto.PlanResponse, error) {
	plans, err := s.planRepo.FindAll(db)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return toPlanResponses(plans), nil
}

func (s *PlanServiceImpl) Get(db *gorm.DB, planID string) (*dto.PlanResponse, error) {
	plan, err := s.planRepo.FindByID(db, planID)
	if err != nil {
		return nil, handlePlanError(err)
	}
	resp := toPlanResponse(plan)
	return &resp, nil
}

func (s *PlanServiceImpl) Create(db *gorm.DB, req *dto.PlanRequest) (*dto.PlanResponse, error) {
	plan := &models.Plan{IsActive: true}
	if err := applyPlanRequest(plan, req); err != nil {
		return nil, err
	}

	// gorm пропускает false при вставке и возвращает в структуру default:true
	active := plan.IsActive

	if err := s.planRepo.Create(db, plan); err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !active {
		if err := s.planRepo.SetActive(db, plan.ID, false); err != nil {
			return nil, apperrors.InternalError(err)
		}
		plan.IsActive = false
	}

	resp := toPlanResponse(plan)
	return &resp, nil
}

func (s *PlanServiceImpl) Update(db *gorm.DB, planID string, req *dto.PlanRequest) (*dto.PlanResponse, error) {
	plan, err := s.planRepo.FindByID(db, planID)
	if err != nil {
		return nil, handlePlanError(err)
	}
	if err := applyPlanRequest(plan, req); err != nil {
		return nil, err
	}
	if err := s.planRepo.Update(db, plan); err != nil {
		return nil, handlePlanError(err)
	}

	resp := toPlanResponse(plan)
	return &resp, nil
}

// Deactivate прячет тариф из каталога; купленные подписки не трогаются
func (s *PlanServiceImpl) Deactivate(db *gorm.DB, planID string) error {
	if err := s.planRepo.SetActive(db, planID, false); err != nil {
		return handlePlanError(err)
	}
	return nil
}

func applyPlanRequest(plan *models.Plan, req *dto.PlanRequest) error {
	if _, ok := lifecycle.ParseDuration(req.Duration); !ok {
		return apperrors.NewBadRequestError("Invalid duration code: " + req.Duration)
	}

	plan.Name = strings.TrimSpace(req.Name)
	plan.SubscriptionType = req.SubscriptionType
	plan.Duration = strings.ReplaceAll(strings.ToLower(req.Duration), " ", "")
	plan.Price = req.Price
	plan.Currency = strings.ToUpper(req.Currency)
	if plan.Currency == "" {
		plan.Currency = "INR"
	}
	plan.QuantityLitres = req.QuantityLitres
	if plan.QuantityLitres == 0 {
		plan.QuantityLitres = 1
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	if req.Features != nil {
		raw, err := json.Marshal(req.Features)
		if err != nil {
			return apperrors.InternalError(err)
		}
		plan.Features = datatypes.JSON(raw)
	}
	return nil
}

func toPlanResponse(plan *models.Plan) dto.PlanResponse {
	resp := dto.PlanResponse{
		ID:               plan.ID,
		Name:             plan.Name,
		SubscriptionType: plan.SubscriptionType,
		Duration:         plan.Duration,
		DeliveryDays:     lifecycle.EffectiveDurationDays(plan.Duration),
		Price:            plan.Price,
		Currency:         plan.Currency,
		QuantityLitres:   plan.QuantityLitres,
		IsActive:         plan.IsActive,
	}
	if len(plan.Features) > 0 {
		_ = json.Unmarshal(plan.Features, &resp.Features)
	}
	return resp
}

func toPlanResponses(plans []models.Plan) []dto.PlanResponse {
	result := make([]dto.PlanResponse, 0, len(plans))
	for i := range plans {
		result = append(result, toPlanResponse(&plans[i]))
	}
	return result
}

func handlePlanError(err error) error {
	if errors.Is(err, repositories.ErrPlanNotFound) {
		return apperrors.ErrPlanNotFound
	}
	return apperrors.InternalError(err)
}
