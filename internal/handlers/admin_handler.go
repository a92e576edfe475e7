package handlers

import (
	"net/http"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/middleware"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	*BaseHandler
	adminService        services.AdminService
	planService         services.PlanService
	subscriptionService services.SubscriptionService
}

func NewAdminHandler(
	base *BaseHandler,
	adminService services.AdminService,
	planService services.PlanService,
	subscriptionService services.SubscriptionService,
) *AdminHandler {
	return &AdminHandler{
		BaseHandler:         base,
		adminService:        adminService,
		planService:         planService,
		subscriptionService: subscriptionService,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("/dashboard", middleware.RequirePermission("dashboard:read"), h.Dashboard)

		plans := admin.Group("/plans", middleware.RequirePermission("plans:write"))
		plans.GET("", h.ListPlans)
		plans.POST("", h.CreatePlan)
		plans.PUT("/:planId", h.UpdatePlan)
		plans.DELETE("/:planId", h.DeactivatePlan)

		admin.GET("/subscriptions", middleware.RequirePermission("subscriptions:read"), h.ListSubscriptions)
		admin.POST("/subscriptions/expire", middleware.RequirePermission("subscriptions:expire"), h.ExpireStale)
		admin.POST("/subscriptions/:id/cancel", middleware.RequirePermission("subscriptions:cancel"), h.ForceCancel)
		admin.GET("/users/:id/subscription", middleware.RequirePermission("subscriptions:read"), h.InspectUser)
	}
}

// Dashboard godoc
// @Summary Сводка для оператора
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.DashboardResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.adminService.Dashboard(h.GetDB(c), h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// --- Тарифы ---

func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.ListAll(h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, plans)
}

// CreatePlan godoc
// @Summary Новый тариф
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.PlanRequest true "Тариф"
// @Success 201 {object} dto.PlanResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Router /admin/plans [post]
func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req dto.PlanRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	plan, err := h.planService.Create(h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, plan)
}

func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	planID, ok := h.ParseUUIDParam(c, "planId")
	if !ok {
		return
	}

	var req dto.PlanRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	plan, err := h.planService.Update(h.GetDB(c), planID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// DeactivatePlan - тариф пропадает из продажи, купленные подписки не трогаются
func (h *AdminHandler) DeactivatePlan(c *gin.Context) {
	planID, ok := h.ParseUUIDParam(c, "planId")
	if !ok {
		return
	}

	if err := h.planService.Deactivate(h.GetDB(c), planID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// --- Подписки ---

// ListSubscriptions godoc
// @Summary Список подписок с фильтром
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param status query string false "active, paused, expired, cancelled, inactive"
// @Param user_id query string false "ID пользователя"
// @Param page query int false "Страница"
// @Param page_size query int false "Размер страницы"
// @Success 200 {object} dto.PaginatedResponse
// @Router /admin/subscriptions [get]
func (h *AdminHandler) ListSubscriptions(c *gin.Context) {
	var filter dto.AdminSubscriptionFilter
	if !h.BindAndValidate_Query(c, &filter) {
		return
	}
	page, pageSize := ParsePagination(c)

	result, err := h.subscriptionService.List(h.GetDB(c), filter, page, pageSize, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ForceCancel godoc
// @Summary Отменить подписку от имени оператора
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID подписки"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} apperrors.ErrorResponse "Подписка уже в терминальном статусе"
// @Router /admin/subscriptions/{id}/cancel [post]
func (h *AdminHandler) ForceCancel(c *gin.Context) {
	subscriptionID, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionService.ForceCancel(h.GetDB(c), subscriptionID, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ExpireStale godoc
// @Summary Ручной прогон истечения
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.ExpireResult
// @Router /admin/subscriptions/expire [post]
func (h *AdminHandler) ExpireStale(c *gin.Context) {
	result, err := h.subscriptionService.ExpireStale(h.GetDB(c), h.Now(), "admin")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// InspectUser godoc
// @Summary Разбор подписки пользователя: история, журнал, проверка инвариантов
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} dto.SubscriptionInspection
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /admin/users/{id}/subscription [get]
func (h *AdminHandler) InspectUser(c *gin.Context) {
	userID, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	inspection, err := h.subscriptionService.Inspect(h.GetDB(c), userID, h.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, inspection)
}
