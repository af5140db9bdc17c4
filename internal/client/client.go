// Package client calls the water-tracker API. It implements loader.Fetcher
// so a loader.Session can sit directly on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"watertrack/internal/core"
	"watertrack/internal/loader"
	"watertrack/internal/log"
	"watertrack/internal/ports"
	"watertrack/internal/services"
)

const apiPath = "/api/water-tracker"

var _ loader.Fetcher = (*Client)(nil)

// StatusError is a non-2xx answer of the API.
type StatusError struct {
	Code     int
	Messages []string
}

func (e *StatusError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("api: status %d", e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, strings.Join(e.Messages, "; "))
}

// Is lets callers test API errors against the core sentinels.
func (e *StatusError) Is(target error) bool {
	switch e.Code {
	case http.StatusBadRequest:
		return target == core.ErrValidationFailed
	case http.StatusNotFound:
		return target == ports.ErrNotFound
	}
	return false
}

// Client provides functions for interacting with the water-tracker API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      string
	logger     *log.Logger
}

// New creates a Client for the server at baseURL. token is sent verbatim as
// a bearer token.
func New(httpClient *http.Client, baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and host", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    u,
		token:      token,
		logger:     log.For(log.ComponentClient),
	}, nil
}

func (c *Client) endpoint(name string, query url.Values) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, apiPath, name)
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, name string, query url.Values, body, target any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", name, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(name, query), rd)
	if err != nil {
		return fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode}
		var eb struct {
			Error []string `json:"error"`
		}
		if json.Unmarshal(data, &eb) == nil {
			se.Messages = eb.Error
		}
		c.logger.DebugContext(ctx, "Request rejected",
			log.FieldMethod, method,
			log.FieldPath, req.URL.Path,
			log.FieldStatusCode, resp.StatusCode)
		return fmt.Errorf("%s: %w", name, se)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

// FetchMonth implements loader.Fetcher.
func (c *Client) FetchMonth(ctx context.Context, year int, month time.Month) (core.Month, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(int(month)))

	var m core.Month
	if err := c.do(ctx, http.MethodGet, "get-month", q, nil, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// FetchControls implements loader.Fetcher.
func (c *Client) FetchControls(ctx context.Context) (core.Controls, error) {
	var out core.Controls
	err := c.do(ctx, http.MethodGet, "get-control-values", nil, nil, &out)
	return out, err
}

// Today returns the day at date, initializing it server side when missing.
// A zero date asks for the server's today.
func (c *Client) Today(ctx context.Context, date core.Date) (*core.Day, error) {
	q := url.Values{}
	if !date.IsZero() {
		q.Set("date", date.String())
	}
	return c.day(ctx, http.MethodGet, "get-today-data", q, nil)
}

func (c *Client) Week(ctx context.Context, date core.Date) (core.Week, error) {
	q := url.Values{}
	q.Set("date", date.String())
	var w core.Week
	err := c.do(ctx, http.MethodGet, "get-week-data", q, nil, &w)
	return w, err
}

// AddDrink records amount ml at the hour named by hourKey ("DD.MM.YYYY.HH").
func (c *Client) AddDrink(ctx context.Context, hourKey string, amount int, liquidType string) (*core.Day, error) {
	body := map[string]any{"date": hourKey, "amount": amount, "type": liquidType}
	return c.day(ctx, http.MethodPut, "update-daily-amount", nil, body)
}

// StepBack removes the latest drink of the day.
func (c *Client) StepBack(ctx context.Context, date core.Date) (*core.Day, error) {
	return c.day(ctx, http.MethodPut, "amount-step-backwards", nil, map[string]any{"date": date})
}

func (c *Client) SetDailyGoal(ctx context.Context, date core.Date, goal int) (*core.Day, error) {
	return c.day(ctx, http.MethodPut, "set-daily-goal", nil, map[string]any{"date": date, "goal": goal})
}

func (c *Client) SetDay(ctx context.Context, date core.Date, goal int) (*core.Day, error) {
	return c.day(ctx, http.MethodPut, "set-day-data", nil, map[string]any{"date": date, "goal": goal})
}

func (c *Client) SetControlValues(ctx context.Context, v services.ControlValues) (services.ControlValues, error) {
	var out services.ControlValues
	err := c.do(ctx, http.MethodPut, "set-control-values", nil, v, &out)
	return out, err
}

// SetControlValue updates one control: kind is "amount", "goal" or "type".
func (c *Client) SetControlValue(ctx context.Context, kind string, value any) (core.Controls, error) {
	var out core.Controls
	err := c.do(ctx, http.MethodPut, "set-control-value", nil,
		map[string]any{"value": value, "controlValueType": kind}, &out)
	return out, err
}

func (c *Client) SetAmountAndType(ctx context.Context, amount int, liquidType string) (core.Controls, error) {
	var out core.Controls
	err := c.do(ctx, http.MethodPut, "set-controls-amount-and-type", nil,
		map[string]any{"amount": amount, "type": liquidType}, &out)
	return out, err
}

// Summary returns the stored rollup of year/month.
func (c *Client) Summary(ctx context.Context, year int, month time.Month) (core.MonthSummary, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(int(month)))
	var out core.MonthSummary
	err := c.do(ctx, http.MethodGet, "get-month-summary", q, nil, &out)
	return out, err
}

func (c *Client) day(ctx context.Context, method, name string, q url.Values, body any) (*core.Day, error) {
	var d core.Day
	if err := c.do(ctx, method, name, q, body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// IsUnauthorized reports whether err is a 401 answer.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}
