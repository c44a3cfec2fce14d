package triage

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func newContext(e *echo.Echo, method, target, body string, user uuid.UUID, roles ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != uuid.Nil {
		req = req.WithContext(auth.WithUser(req.Context(), user, roles))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError with %d, got %v", code, err)
	}
	if he.Code != code {
		t.Errorf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestHandler_ListQuestions(t *testing.T) {
	h, e := newTestHandler()
	c, rec := newContext(e, http.MethodGet, "/", "", uuid.Nil)
	if err := h.ListQuestions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Questions) != QuestionCount || resp.Questions[0].Key != KeyDifficultyBreathing {
		t.Errorf("unexpected questions: %s", rec.Body.String())
	}
}

func TestHandler_Evaluate(t *testing.T) {
	h, e := newTestHandler()
	tests := []struct {
		name   string
		body   string
		score  int
		urgent bool
	}{
		{"object", `{"answers":{"high_fever":true,"severe_pain":true}}`, 9, true},
		{"array", `{"answers":[false,false,false,false,false,false,false,true]}`, 1, false},
		{"empty", `{"answers":{}}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(e, http.MethodPost, "/", tt.body, uuid.Nil)
			if err := h.Evaluate(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var resp evaluateResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Score != tt.score || resp.Urgent != tt.urgent || resp.Message == "" {
				t.Errorf("unexpected response: %s", rec.Body.String())
			}
		})
	}
}

func TestHandler_Evaluate_BadAnswers(t *testing.T) {
	h, e := newTestHandler()
	for _, body := range []string{
		`{"answers":[true,false,true]}`,
		`{"answers":{"headache":true}}`,
		`{"answers":`,
	} {
		c, _ := newContext(e, http.MethodPost, "/", body, uuid.Nil)
		expectHTTPError(t, h.Evaluate(c), http.StatusBadRequest)
	}
}

func TestHandler_MissingAnswers(t *testing.T) {
	h, e := newTestHandler()
	endpoints := map[string]echo.HandlerFunc{
		"evaluate":  h.Evaluate,
		"recommend": h.Recommend,
		"sessions":  h.RecordSession,
	}
	bodies := []string{
		`{}`,
		`{"answers":null}`,
		`{"respuestas":[true,false,false,false,false,false,false,false]}`,
	}
	for name, fn := range endpoints {
		for _, body := range bodies {
			c, _ := newContext(e, http.MethodPost, "/", body, uuid.New(), auth.RolePatient)
			err := fn(c)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
				t.Errorf("%s %s: expected 400, got %v", name, body, err)
			}
		}
	}

	c, rec := newContext(e, http.MethodGet, "/", "", uuid.New(), auth.RoleAdmin)
	if err := h.CountSessions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"count":0}` {
		t.Errorf("rejected requests must not store sessions: %s", rec.Body.String())
	}
}

func TestHandler_Recommend(t *testing.T) {
	h, e := newTestHandler()
	c, rec := newContext(e, http.MethodPost, "/",
		`{"answers":{"chronic_illness":true},"age":70,"chronic_conditions":["COPD"]}`, uuid.New(), auth.RolePatient)
	if err := h.Recommend(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp Recommendation
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recommendations) != 5 || len(resp.Notes) != 2 {
		t.Errorf("unexpected recommendation: %s", rec.Body.String())
	}
}

func TestHandler_Recommend_Urgent(t *testing.T) {
	h, e := newTestHandler()
	c, _ := newContext(e, http.MethodPost, "/", `{"answers":{"confusion":true}}`, uuid.New(), auth.RolePatient)
	expectHTTPError(t, h.Recommend(c), http.StatusUnprocessableEntity)
}

func TestHandler_ResolveTransport(t *testing.T) {
	h, e := newTestHandler()
	c, rec := newContext(e, http.MethodPost, "/", `{"can_travel":false}`, uuid.Nil)
	if err := h.ResolveTransport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), ResolveTransport(false)) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	for _, body := range []string{`{}`, `{"can_travel":"yes"}`} {
		c, _ := newContext(e, http.MethodPost, "/", body, uuid.Nil)
		expectHTTPError(t, h.ResolveTransport(c), http.StatusBadRequest)
	}
}

func TestHandler_RecordSession(t *testing.T) {
	h, e := newTestHandler()
	caller := uuid.New()
	c, rec := newContext(e, http.MethodPost, "/", `{"answers":{"chest_pain":true}}`, caller, auth.RolePatient)
	if err := h.RecordSession(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var s Session
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !s.Urgent || s.Score != 5 || s.UserID == nil || *s.UserID != caller {
		t.Errorf("unexpected session: %s", rec.Body.String())
	}
}

func TestHandler_RecordSession_Anonymous(t *testing.T) {
	h, e := newTestHandler()
	c, rec := newContext(e, http.MethodPost, "/", `{"answers":[false,false,false,false,false,false,false,false]}`, uuid.Nil)
	if err := h.RecordSession(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"user_id":null`) {
		t.Errorf("expected anonymous session, got %s", rec.Body.String())
	}

	body := `{"user_id":"` + uuid.New().String() + `","answers":{}}`
	c, _ = newContext(e, http.MethodPost, "/", body, uuid.Nil)
	expectHTTPError(t, h.RecordSession(c), http.StatusForbidden)
}

func TestHandler_ListSessions(t *testing.T) {
	h, e := newTestHandler()
	for i := 0; i < 3; i++ {
		c, _ := newContext(e, http.MethodPost, "/", `{"answers":{}}`, uuid.Nil)
		if err := h.RecordSession(c); err != nil {
			t.Fatal(err)
		}
	}

	c, rec := newContext(e, http.MethodGet, "/?limit=2&urgent=false", "", uuid.New(), auth.RoleAdmin)
	if err := h.ListSessions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || !resp.HasMore {
		t.Errorf("unexpected page: %s", rec.Body.String())
	}

	c, rec = newContext(e, http.MethodGet, "/", "", uuid.New(), auth.RoleAdmin)
	if err := h.CountSessions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"count":3}` {
		t.Errorf("unexpected count: %s", rec.Body.String())
	}

	c, _ = newContext(e, http.MethodGet, "/?urgent=maybe", "", uuid.New(), auth.RoleAdmin)
	expectHTTPError(t, h.ListSessions(c), http.StatusBadRequest)
}

func TestHandler_Symptoms(t *testing.T) {
	h, e := newTestHandler()
	owner := uuid.New()

	c, rec := newContext(e, http.MethodPost, "/", `{"description":"sore throat"}`, owner, auth.RolePatient)
	if err := h.LogSymptom(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var sym Symptom
	if err := json.Unmarshal(rec.Body.Bytes(), &sym); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sym.UserID != owner {
		t.Errorf("symptom should belong to the caller")
	}

	c, _ = newContext(e, http.MethodPatch, "/", `{"description":"x"}`, uuid.New(), auth.RolePatient)
	c.SetParamNames("id")
	c.SetParamValues(sym.ID.String())
	expectHTTPError(t, h.UpdateSymptom(c), http.StatusForbidden)

	c, rec = newContext(e, http.MethodPatch, "/", `{"description":"sore throat and fever"}`, owner, auth.RolePatient)
	c.SetParamNames("id")
	c.SetParamValues(sym.ID.String())
	if err := h.UpdateSymptom(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "sore throat and fever") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	c, rec = newContext(e, http.MethodGet, "/", "", owner, auth.RolePatient)
	c.SetParamNames("user_id")
	c.SetParamValues(owner.String())
	if err := h.ListSymptoms(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected list: %s", rec.Body.String())
	}

	c, rec = newContext(e, http.MethodDelete, "/", "", uuid.New(), auth.RoleStaff)
	c.SetParamNames("id")
	c.SetParamValues(sym.ID.String())
	if err := h.DeleteSymptom(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c, _ = newContext(e, http.MethodDelete, "/", "", owner, auth.RolePatient)
	c.SetParamNames("id")
	c.SetParamValues(sym.ID.String())
	expectHTTPError(t, h.DeleteSymptom(c), http.StatusNotFound)
}

func TestHandler_LogSymptom_ForOtherUser(t *testing.T) {
	h, e := newTestHandler()
	body := `{"user_id":"` + uuid.New().String() + `","description":"cough"}`

	c, _ := newContext(e, http.MethodPost, "/", body, uuid.New(), auth.RolePatient)
	expectHTTPError(t, h.LogSymptom(c), http.StatusForbidden)

	c, rec := newContext(e, http.MethodPost, "/", body, uuid.New(), auth.RoleStaff)
	if err := h.LogSymptom(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_RouteGuards(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/triage/questions", "", http.StatusOK},
		{http.MethodPost, "/api/v1/triage/evaluate", `{"answers":{}}`, http.StatusOK},
		{http.MethodPost, "/api/v1/triage/recommend", `{"answers":{}}`, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/triage/sessions", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/triage/symptoms", `{"description":"x"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		if tt.body != "" {
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}
}
