package http

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error []string `json:"error"`
}

// ErrorResponse creates an error response carrying messages.
func ErrorResponse(statusCode int, messages ...string) *ResponseBuilder {
	if messages == nil {
		messages = []string{http.StatusText(statusCode)}
	}
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: messages})
}

// BadRequestError creates a 400 response with one message per failed check.
func BadRequestError(err error) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, errorMessages(err)...)
}

// UnauthorizedError creates a 401 response with a bearer challenge.
func UnauthorizedError() *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized).Header("WWW-Authenticate", `Bearer realm="watertrack"`)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Header("Retry-After", "60")
}

// InternalServerError creates a 500 response without leaking err.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}

// errorMessages flattens joined errors into one message each.
func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, errorMessages(e)...)
		}
		return out
	}
	var re *requestError
	if errors.As(err, &re) {
		return []string{re.Error()}
	}
	return []string{err.Error()}
}
