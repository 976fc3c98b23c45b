package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streakup/habit-tracker/internal/api/metrics"
	"github.com/streakup/habit-tracker/internal/core/ports"
)

// HabitHandler handles HTTP requests for the caller's habits.
type HabitHandler struct {
	service ports.HabitService
	metrics *metrics.Metrics
}

// NewHabitHandler builds the handler. m may be nil.
func NewHabitHandler(service ports.HabitService, m *metrics.Metrics) *HabitHandler {
	return &HabitHandler{service: service, metrics: m}
}

// List handles GET /api/habits.
//
// @Summary      List the caller's habits
// @Tags         habits
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   habitResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/habits [get]
func (h *HabitHandler) List(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	habits, err := h.service.ListHabits(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, habits)
}

// Create handles POST /api/habits.
//
// @Summary      Create a habit
// @Tags         habits
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createHabitRequest  true  "Habit name"
// @Success      200   {object}  habitResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /api/habits [post]
func (h *HabitHandler) Create(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req createHabitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	habit, err := h.service.CreateHabit(c.Request().Context(), p, req.Name)
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.HabitsCreated.Inc()
	}
	return c.JSON(http.StatusOK, habit)
}

// Delete handles DELETE /api/habits/:id.
//
// @Summary      Delete a habit
// @Tags         habits
// @Security     BearerAuth
// @Param        id   path      string  true  "Habit ID"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/habits/{id} [delete]
func (h *HabitHandler) Delete(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteHabit(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.HabitsDeleted.Inc()
	}
	return c.NoContent(http.StatusNoContent)
}

// Complete handles POST /api/habits/:id/complete.
//
// @Summary      Mark a habit as done today
// @Description  Completing a habit twice on the same day returns it unchanged.
// @Tags         habits
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Habit ID"
// @Success      200  {object}  habitResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /api/habits/{id}/complete [post]
func (h *HabitHandler) Complete(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	habit, err := h.service.CompleteHabit(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, habit)
}
