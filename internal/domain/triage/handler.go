package triage

import (
	"errors"
	"net/http"
	"strconv"

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
	g := api.Group("/triage")
	authed := auth.RequireAuthenticated()
	admin := auth.RequireRole(auth.RoleAdmin)

	g.GET("/questions", h.ListQuestions)
	g.POST("/evaluate", h.Evaluate)
	g.POST("/recommend", h.Recommend, authed)
	g.POST("/transport", h.ResolveTransport)

	g.POST("/sessions", h.RecordSession)
	g.GET("/sessions", h.ListSessions, admin)
	g.GET("/sessions/count", h.CountSessions, admin)

	g.POST("/symptoms", h.LogSymptom, authed)
	g.GET("/users/:user_id/symptoms", h.ListSymptoms, authed)
	g.PATCH("/symptoms/:id", h.UpdateSymptom, authed)
	g.DELETE("/symptoms/:id", h.DeleteSymptom, authed)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotApplicable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

// bind decodes the body, surfacing Answers validation as a plain 400.
func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if inner := he.Unwrap(); inner != nil && errors.Is(inner, ErrInvalid) {
				return echo.NewHTTPError(http.StatusBadRequest, inner.Error())
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// -- Questionnaire --

func (h *Handler) ListQuestions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"questions": Questions(),
	})
}

// Request bodies take answers by pointer so an absent or null field is told
// apart from a questionnaire with every answer false.
type evaluateRequest struct {
	Answers *Answers `json:"answers"`
}

type recommendRequest struct {
	RecommendInput
	Answers *Answers `json:"answers"`
}

type sessionRequest struct {
	SessionInput
	Answers *Answers `json:"answers"`
}

func requireAnswers(a *Answers) (Answers, error) {
	if a == nil {
		return Answers{}, httpError(ErrMissingAnswers)
	}
	return *a, nil
}

type evaluateResponse struct {
	Result
	Message string `json:"message"`
}

func (h *Handler) Evaluate(c echo.Context) error {
	var req evaluateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	answers, err := requireAnswers(req.Answers)
	if err != nil {
		return err
	}
	r := Evaluate(answers)
	return c.JSON(http.StatusOK, evaluateResponse{Result: r, Message: r.Message()})
}

func (h *Handler) Recommend(c echo.Context) error {
	var req recommendRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	answers, err := requireAnswers(req.Answers)
	if err != nil {
		return err
	}
	req.RecommendInput.Answers = answers
	if req.Age != nil && *req.Age < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "age must not be negative")
	}
	rec, err := Recommend(req.RecommendInput)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

type transportRequest struct {
	CanTravel *bool `json:"can_travel"`
}

func (h *Handler) ResolveTransport(c echo.Context) error {
	var req transportRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.CanTravel == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "can_travel must be true or false")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": ResolveTransport(*req.CanTravel)})
}

// -- Triage Session --

func (h *Handler) RecordSession(c echo.Context) error {
	var req sessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	answers, err := requireAnswers(req.Answers)
	if err != nil {
		return err
	}
	req.SessionInput.Answers = answers
	ctx := c.Request().Context()
	caller, _ := auth.UserIDFromContext(ctx)
	if req.UserID != nil && !auth.CanActFor(ctx, *req.UserID) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to record a session for this user")
	}
	sess, err := h.svc.RecordSession(ctx, caller, req.SessionInput)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func sessionFilter(c echo.Context) (SessionFilter, error) {
	var f SessionFilter
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		f.UserID = &id
	}
	if raw := c.QueryParam("urgent"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "urgent must be true or false")
		}
		f.Urgent = &v
	}
	return f, nil
}

func (h *Handler) ListSessions(c echo.Context) error {
	f, err := sessionFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContextMax(c, MaxSessionLimit)
	ctx := c.Request().Context()
	items, err := h.svc.ListSessions(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	total, err := h.svc.CountSessions(ctx, f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CountSessions(c echo.Context) error {
	f, err := sessionFilter(c)
	if err != nil {
		return err
	}
	n, err := h.svc.CountSessions(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}

// -- Symptom --

type symptomRequest struct {
	UserID      *uuid.UUID `json:"user_id"`
	Description string     `json:"description"`
}

func (h *Handler) LogSymptom(c echo.Context) error {
	var req symptomRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	owner, _ := auth.UserIDFromContext(ctx)
	if req.UserID != nil {
		if !auth.CanActFor(ctx, *req.UserID) {
			return echo.NewHTTPError(http.StatusForbidden, "not allowed to log symptoms for this user")
		}
		owner = *req.UserID
	}
	sym, err := h.svc.LogSymptom(ctx, owner, req.Description)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sym)
}

func (h *Handler) ListSymptoms(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}
	if !auth.CanActFor(c.Request().Context(), userID) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to list this user's symptoms")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSymptoms(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// ownedSymptom loads the symptom and checks the caller may change it.
func (h *Handler) ownedSymptom(c echo.Context) (*Symptom, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sym, err := h.svc.GetSymptom(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	if !auth.CanActFor(c.Request().Context(), sym.UserID) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not allowed to access this symptom")
	}
	return sym, nil
}

func (h *Handler) UpdateSymptom(c echo.Context) error {
	sym, err := h.ownedSymptom(c)
	if err != nil {
		return err
	}
	var req symptomRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	updated, err := h.svc.UpdateSymptom(c.Request().Context(), sym.ID, req.Description)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteSymptom(c echo.Context) error {
	sym, err := h.ownedSymptom(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSymptom(c.Request().Context(), sym.ID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
