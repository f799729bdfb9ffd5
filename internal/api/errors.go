package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is returned when the backend answered with a non-2xx status.
type StatusError struct {
	Call string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Call, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Call, e.Code, body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a backend response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsTransport reports whether err happened before any status was received.
func IsTransport(err error) bool {
	return err != nil && StatusCode(err) == 0
}
