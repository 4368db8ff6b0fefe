package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mealcard/internal/meal/models"
	dErrors "mealcard/pkg/domain-errors"
)

type stubMealService struct {
	submitted []models.MealSlot
	submitErr error
	selected  []models.MealSlot
}

func (s *stubMealService) Submit(_ context.Context, _ int64, _ time.Time, slots []models.MealSlot) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.submitted = slots
	return nil
}

func (s *stubMealService) Selections(context.Context, int64, time.Time) ([]models.MealSlot, error) {
	return s.selected, nil
}

type stubTrigger struct {
	triggered string
	err       error
}

func (s *stubTrigger) Trigger(_ context.Context, name string) error {
	s.triggered = name
	return s.err
}

func (s *stubTrigger) Jobs() []string { return []string{"finalize", "reconcile"} }

type HandlerSuite struct {
	suite.Suite
	meals  *stubMealService
	jobs   *stubTrigger
	server http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.meals = &stubMealService{}
	s.jobs = &stubTrigger{}
	s.server = NewRouter(NewHandler(s.meals, s.jobs))
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestHealthReportsDependencies() {
	healthy := func(context.Context) error { return nil }
	s.server = NewRouter(NewHandler(s.meals, s.jobs,
		WithHealthCheck("postgres", healthy),
		WithHealthCheck("redis", healthy),
	))

	rec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("ok", body["status"])
	s.Equal("ok", body["postgres"])
	s.Equal("ok", body["redis"])
}

func (s *HandlerSuite) TestHealthDegradedOnDependencyFailure() {
	s.server = NewRouter(NewHandler(s.meals, s.jobs,
		WithHealthCheck("postgres", func(context.Context) error { return nil }),
		WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	))

	rec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("degraded", body["status"])
	s.Equal("ok", body["postgres"])
	s.Equal("connection refused", body["redis"])
}

func (s *HandlerSuite) TestMealSubmit() {
	rec := s.do(http.MethodPost, "/api/meal",
		`{"person_id": 7, "date": "2026-03-17", "meals": ["breakfast", "lunch"]}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal([]models.MealSlot{models.SlotBreakfast, models.SlotLunch}, s.meals.submitted)
}

func (s *HandlerSuite) TestMealSubmitBadDate() {
	rec := s.do(http.MethodPost, "/api/meal", `{"person_id": 7, "date": "17.03.2026"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestMealSubmitInvalidJSON() {
	rec := s.do(http.MethodPost, "/api/meal", `{`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestMealSubmitFinalizedConflict() {
	s.meals.submitErr = dErrors.New(dErrors.CodeConflict, "request is finalized and can no longer be changed")
	rec := s.do(http.MethodPost, "/api/meal",
		`{"person_id": 7, "date": "2026-03-17", "meals": ["dinner"]}`)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestMealGet() {
	s.meals.selected = []models.MealSlot{models.SlotSnack}
	rec := s.do(http.MethodGet, "/api/meal?person_id=7&date=2026-03-17", "")
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Meals []string `json:"meals"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal([]string{"snack"}, body.Meals)
}

func (s *HandlerSuite) TestMealGetMissingPerson() {
	rec := s.do(http.MethodGet, "/api/meal?date=2026-03-17", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestJobsList() {
	rec := s.do(http.MethodGet, "/jobs", "")
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Jobs []string `json:"jobs"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal([]string{"finalize", "reconcile"}, body.Jobs)
}

func (s *HandlerSuite) TestJobTrigger() {
	rec := s.do(http.MethodPost, "/jobs/finalize/run", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("finalize", s.jobs.triggered)
}

func (s *HandlerSuite) TestJobTriggerUnknown() {
	s.jobs.err = dErrors.New(dErrors.CodeNotFound, "unknown job")
	rec := s.do(http.MethodPost, "/jobs/missing/run", "")
	s.Equal(http.StatusNotFound, rec.Code)
}
