package handlers

import (
	"net/http"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// PlanHandler - публичный каталог тарифов. Управление тарифами в AdminHandler.
type PlanHandler struct {
	*BaseHandler
	planService services.PlanService
}

func NewPlanHandler(base *BaseHandler, planService services.PlanService) *PlanHandler {
	return &PlanHandler{
		BaseHandler: base,
		planService: planService,
	}
}

func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	plans := rg.Group("/plans")
	{
		plans.GET("", h.ListPlans)
		plans.GET("/:planId", h.GetPlan)
	}
}

// ListPlans godoc
// @Summary Активные тарифы
// @Tags plans
// @Produce json
// @Success 200 {array} dto.PlanResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.ListActive(h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, plans)
}

func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, ok := h.ParseUUIDParam(c, "planId")
	if !ok {
		return
	}

	plan, err := h.planService.Get(h.GetDB(c), planID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}
