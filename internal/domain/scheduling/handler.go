package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	authed := auth.RequireAuthenticated()

	api.GET("/availability", h.GetAvailability)
	api.POST("/availability", h.PostAvailability)
	api.GET("/availability/next", h.NextAvailable)

	api.POST("/appointments", h.Book, authed)
	api.GET("/appointments", h.ListAll, auth.RequireRole(auth.RoleAdmin, auth.RoleStaff))
	api.GET("/appointments/:id", h.Get, authed)
	api.DELETE("/appointments/:id", h.Delete, authed)
	api.PATCH("/appointments/:id/status", h.SetStatus, authed)
	api.PATCH("/appointments/:id/reschedule", h.Reschedule, authed)
	api.GET("/users/:user_id/appointments", h.ListByUser, authed)
}

// httpError maps service errors. A taken slot is a 400 like any other input
// the caller has to correct.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// owned loads the appointment and checks the caller may act on it.
func (h *Handler) owned(c echo.Context) (*Appointment, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	if !auth.CanActFor(c.Request().Context(), a.UserID) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not allowed to access this appointment")
	}
	return a, nil
}

// -- Availability --

type availabilityRequest struct {
	Date string `json:"date"`
}

type availabilityResponse struct {
	Date     string   `json:"date"`
	Timezone string   `json:"timezone"`
	Slots    []string `json:"slots"`
}

func (h *Handler) GetAvailability(c echo.Context) error {
	return h.availability(c, c.QueryParam("date"))
}

func (h *Handler) PostAvailability(c echo.Context) error {
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.availability(c, req.Date)
}

func (h *Handler) availability(c echo.Context, raw string) error {
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	cal := h.svc.Calendar()
	day, err := cal.ParseDate(raw)
	if err != nil {
		return httpError(err)
	}
	free, err := h.svc.Availability(c.Request().Context(), day)
	if err != nil {
		return httpError(err)
	}

	slots := make([]string, len(free))
	for i, t := range free {
		slots[i] = t.Format(SlotLayout)
	}
	return c.JSON(http.StatusOK, availabilityResponse{
		Date:     cal.DayKey(day),
		Timezone: cal.Location().String(),
		Slots:    slots,
	})
}

type nextSlotResponse struct {
	Available bool       `json:"available"`
	Date      *string    `json:"date"`
	Time      *string    `json:"time"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

func (h *Handler) NextAvailable(c echo.Context) error {
	var from time.Time
	if raw := c.QueryParam("from"); raw != "" {
		t, err := h.svc.Calendar().ParseTimestamp(raw)
		if err != nil {
			return httpError(err)
		}
		from = t
	}

	horizon := 0
	if raw := c.QueryParam("horizon_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "horizon_days must be a non-negative integer")
		}
		horizon = n
	}

	slot, ok, err := h.svc.NextAvailable(c.Request().Context(), from, horizon)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return c.JSON(http.StatusOK, nextSlotResponse{})
	}
	date, clock := slot.Format(DateLayout), slot.Format(SlotLayout)
	return c.JSON(http.StatusOK, nextSlotResponse{
		Available: true,
		Date:      &date,
		Time:      &clock,
		StartTime: &slot,
	})
}

// -- Appointments --

type bookRequest struct {
	UserID    *uuid.UUID `json:"user_id"`
	StartTime string     `json:"start_time"`
	Reason    string     `json:"reason"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	caller, _ := auth.UserIDFromContext(ctx)
	owner := caller
	if req.UserID != nil && *req.UserID != caller {
		if !auth.HasRole(ctx, auth.RoleStaff) {
			return echo.NewHTTPError(http.StatusForbidden, "only staff may book for another user")
		}
		owner = *req.UserID
	}

	ts, err := h.svc.Calendar().ParseTimestamp(req.StartTime)
	if err != nil {
		return httpError(err)
	}
	a, err := h.svc.Book(ctx, owner, ts, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	a, err := h.owned(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	a, err := h.owned(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), a.ID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	a, err := h.owned(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.SetStatus(c.Request().Context(), a.ID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

type rescheduleRequest struct {
	StartTime string `json:"start_time"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	a, err := h.owned(c)
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ts, err := h.svc.Calendar().ParseTimestamp(req.StartTime)
	if err != nil {
		return httpError(err)
	}
	updated, err := h.svc.Reschedule(c.Request().Context(), a.ID, ts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) filterFromQuery(c echo.Context) (ListFilter, error) {
	f := ListFilter{Status: Status(c.QueryParam("status"))}
	cal := h.svc.Calendar()
	if raw := c.QueryParam("date_from"); raw != "" {
		d, err := cal.ParseDate(raw)
		if err != nil {
			return f, httpError(err)
		}
		f.DateFrom = d
	}
	if raw := c.QueryParam("date_to"); raw != "" {
		d, err := cal.ParseDate(raw)
		if err != nil {
			return f, httpError(err)
		}
		f.DateTo = d
	}
	return f, nil
}

func (h *Handler) ListAll(c echo.Context) error {
	f, err := h.filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAll(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByUser(c echo.Context) error {
	userID, err := parseID(c, "user_id")
	if err != nil {
		return err
	}
	if !auth.CanActFor(c.Request().Context(), userID) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to list this user's appointments")
	}
	f, err := h.filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByUser(c.Request().Context(), userID, f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
