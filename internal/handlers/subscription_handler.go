package handlers

import (
	"net/http"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/middleware"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SubscriptionHandler struct {
	*BaseHandler
	subscriptionService services.SubscriptionService
}

func NewSubscriptionHandler(base *BaseHandler, subscriptionService services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:         base,
		subscriptionService: subscriptionService,
	}
}

// RegisterRoutes - подписка текущего пользователя
func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	subscriptions := r.Group("/subscriptions")
	subscriptions.Use(middleware.AuthMiddleware())
	{
		subscriptions.GET("/current", h.GetCurrent)
		subscriptions.GET("/history", h.GetHistory)
		subscriptions.POST("/pause", h.Pause)
		subscriptions.POST("/resume", h.Resume)
		subscriptions.POST("/cancel", h.Cancel)
	}
}

// GetCurrent godoc
// @Summary Текущая подписка с остатком дней
// @Description Активная с истекшим end_date возвращается как expired (и сохраняется).
// @Tags subscriptions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /subscriptions/current [get]
func (h *SubscriptionHandler) GetCurrent(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.GetCurrent(h.GetDB(c), userID, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) GetHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	history, err := h.subscriptionService.History(h.GetDB(c), userID, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// Pause godoc
// @Summary Приостановить подписку
// @Tags subscriptions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} apperrors.ErrorResponse "Переход недопустим в текущем статусе"
// @Router /subscriptions/pause [post]
func (h *SubscriptionHandler) Pause(c *gin.Context) {
	h.transition(c, h.subscriptionService.Pause)
}

// Resume godoc
// @Summary Возобновить подписку, end_date сдвигается на дни паузы
// @Tags subscriptions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} apperrors.ErrorResponse "Переход недопустим в текущем статусе"
// @Failure 500 {object} apperrors.ErrorResponse "Данные подписки повреждены"
// @Router /subscriptions/resume [post]
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	h.transition(c, h.subscriptionService.Resume)
}

// Cancel godoc
// @Summary Отменить подписку
// @Tags subscriptions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} apperrors.ErrorResponse "Переход недопустим в текущем статусе"
// @Router /subscriptions/cancel [post]
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.subscriptionService.Cancel)
}

type transitionFunc func(db *gorm.DB, userID string, now time.Time) (*dto.SubscriptionResponse, error)

func (h *SubscriptionHandler) transition(c *gin.Context, apply transitionFunc) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	sub, err := apply(h.GetDB(c), userID, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}
