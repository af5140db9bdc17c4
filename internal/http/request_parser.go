package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"watertrack/internal/core"
)

const maxBodyBytes = 64 << 10

// requestError is a malformed request. It maps to 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads the JSON body of r into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequestf("request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequestf("request body exceeds %d bytes", maxErr.Limit)
		}
		var validation *core.ValidationError
		if errors.As(err, &validation) {
			return validation
		}
		return badRequestf("invalid request body: %v", err)
	}
	return nil
}

// parseYearMonth reads the required year and month query parameters.
func parseYearMonth(r *http.Request) (int, time.Month, error) {
	var errs []error
	year, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("year")))
	if err != nil {
		errs = append(errs, badRequestf("year must be a number"))
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("month")))
	if err != nil {
		errs = append(errs, badRequestf("month must be a number between 1 and 12"))
	}
	return year, time.Month(month), errors.Join(errs...)
}

// parseDateQuery reads a "DD.MM.YYYY" query parameter. A missing parameter
// yields the zero Date.
func parseDateQuery(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: name, Reason: err.Error()}
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
