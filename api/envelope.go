package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodySize = 1 << 20

// envelope is the common response shape. Older endpoints signal success with
// status:"success", newer ones with success:true; a 2xx answer carrying
// neither counts as success.
type envelope struct {
	Status  string          `json:"status"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	User    json.RawMessage `json:"user"`
}

func (e *envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	if e.Status != "" {
		return e.Status == "success"
	}
	return true
}

// payload returns the data field, or an *Error when the server sent none.
func (e *envelope) payload(what string) (json.RawMessage, error) {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil, &Error{StatusCode: http.StatusOK, Message: what + ": response has no data"}
	}
	return e.Data, nil
}

// Error is a request the server answered with a failure.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 or 403 answer.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			if resp.StatusCode >= 300 {
				return nil, &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.ok() {
		return nil, &Error{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}
