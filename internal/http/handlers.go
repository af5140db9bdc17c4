package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/log"
	"watertrack/internal/ports"
	"watertrack/internal/services"
)

type (
	drinkRequest struct {
		Date   string `json:"date"`
		Amount int    `json:"amount"`
		Type   string `json:"type"`
	}

	dayGoalRequest struct {
		Date core.Date `json:"date"`
		Goal int       `json:"goal"`
	}

	dateRequest struct {
		Date core.Date `json:"date"`
	}

	controlValueRequest struct {
		Value            json.RawMessage `json:"value"`
		ControlValueType string          `json:"controlValueType"`
	}

	amountAndTypeRequest struct {
		Amount int    `json:"amount"`
		Type   string `json:"type"`
	}
)

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	userID := userIDOf(r)
	year, month, err := parseYearMonth(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := monthCacheKey(userID, year, month)
	if m, ok := s.monthCache.Get(key); ok {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		NewResponse().JSON(m).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	m, err := s.svc.Month(r.Context(), userID, year, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.monthCache.Set(key, m)
	NewResponse().JSON(m).Write(w)
}

func (s *Server) handleGetControls(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Controls(r.Context(), userIDOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(c).Write(w)
}

func (s *Server) handleGetToday(w http.ResponseWriter, r *http.Request) {
	userID := userIDOf(r)
	date, err := parseDateQuery(r, "date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	day, created, err := s.svc.Today(r.Context(), userID, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if created {
		s.invalidate(userID)
	}
	NewResponse().JSON(day).Write(w)
}

func (s *Server) handleGetWeek(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	week, err := s.svc.Week(r.Context(), userIDOf(r), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(week).Write(w)
}

func (s *Server) handleUpdateDailyAmount(w http.ResponseWriter, r *http.Request) {
	var req drinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := userIDOf(r)
	day, err := s.svc.AddDrink(r.Context(), userID, strings.TrimSpace(req.Date), req.Amount, sanitizeInput(req.Type))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.totalDrinks, 1)
	s.invalidate(userID)
	NewResponse().JSON(day).Write(w)
}

func (s *Server) handleSetDay(w http.ResponseWriter, r *http.Request) {
	var req dayGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := userIDOf(r)
	day, err := s.svc.SetDay(r.Context(), userID, req.Date, req.Goal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(userID)
	NewResponse().JSON(day).Write(w)
}

func (s *Server) handleSetDailyGoal(w http.ResponseWriter, r *http.Request) {
	var req dayGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := userIDOf(r)
	day, err := s.svc.SetDailyGoal(r.Context(), userID, req.Date, req.Goal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(userID)
	NewResponse().JSON(day).Write(w)
}

func (s *Server) handleStepBack(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := userIDOf(r)
	day, err := s.svc.StepBack(r.Context(), userID, req.Date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(userID)
	NewResponse().JSON(day).Write(w)
}

func (s *Server) handleSetControlValues(w http.ResponseWriter, r *http.Request) {
	var req services.ControlValues
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Type = sanitizeInput(req.Type)
	userID := userIDOf(r)
	out, err := s.svc.SetControlValues(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(userID)
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleSetControlValue(w http.ResponseWriter, r *http.Request) {
	var req controlValueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := req.controls()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.svc.SetControls(r.Context(), userIDOf(r), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(out).Write(w)
}

// controls turns the single-field update into a partial Controls.
func (req controlValueRequest) controls() (core.Controls, error) {
	if len(req.Value) == 0 || string(req.Value) == "null" {
		return core.Controls{}, &core.ValidationError{Field: "value", Reason: "is required"}
	}
	switch req.ControlValueType {
	case "amount", "goal":
		var v int
		if err := json.Unmarshal(req.Value, &v); err != nil {
			return core.Controls{}, &core.ValidationError{Field: req.ControlValueType, Reason: "must be a number"}
		}
		if req.ControlValueType == "amount" {
			return core.Controls{Amount: core.IntPtr(v)}, nil
		}
		return core.Controls{Goal: core.IntPtr(v)}, nil
	case "type":
		var v string
		if err := json.Unmarshal(req.Value, &v); err != nil {
			return core.Controls{}, &core.ValidationError{Field: "type", Reason: "must be a string"}
		}
		return core.Controls{Type: core.StringPtr(sanitizeInput(v))}, nil
	default:
		return core.Controls{}, &core.ValidationError{Field: "controlValueType", Reason: "must be one of amount, goal, type"}
	}
}

func (s *Server) handleSetAmountAndType(w http.ResponseWriter, r *http.Request) {
	var req amountAndTypeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.svc.SetAmountAndType(r.Context(), userIDOf(r), req.Amount, sanitizeInput(req.Type))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.svc.Summary(r.Context(), userIDOf(r), year, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(sum).Write(w)
}

// writeError maps err onto the status taxonomy of the API.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var re *requestError
	switch {
	case errors.As(err, &re),
		errors.Is(err, core.ErrValidationFailed),
		errors.Is(err, calendar.ErrInvalidFormat):
		logger.DebugContext(ctx, "Request rejected", log.FieldError, err, "error_type", log.ErrorTypeValidation)
		BadRequestError(err).Write(w)
	case errors.Is(err, ports.ErrNotFound):
		NotFoundError("day not found").Write(w)
	default:
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, r.URL.Path,
			log.NewFields().WithUser(userIDOf(r)))
		InternalServerError().Write(w)
	}
}

// userIDOf returns the id set by the auth middleware.
func userIDOf(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}
