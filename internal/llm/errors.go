package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	agriberrors "agribot/internal/errors"
)

// mapHTTPError classifies an upstream HTTP failure so retry logic and the
// agent loop can react appropriately.
func mapHTTPError(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	base := fmt.Errorf("API error %d: %s", statusCode, msg)

	if agriberrors.IsTransientHTTPStatus(statusCode) {
		return &agriberrors.TransientError{Err: base, StatusCode: statusCode}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &agriberrors.PermanentError{
			Err:        base,
			StatusCode: statusCode,
			Message:    "Authentication failed. Please check your API key configuration.",
		}
	}

	return &agriberrors.PermanentError{Err: base, StatusCode: statusCode}
}

// wrapRequestError marks transport-level failures (DNS, refused connection,
// timeout) as transient.
func wrapRequestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrHandlerTimeout) {
		return &agriberrors.TransientError{Err: err}
	}
	return &agriberrors.TransientError{Err: fmt.Errorf("request failed: %w", err)}
}
