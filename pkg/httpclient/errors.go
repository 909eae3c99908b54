package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Asdisarson/ss/pkg/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// upstreamErrorBody covers the common shapes of JSON error bodies:
// {"error":"..."}, {"message":"..."} and {"error":{"code":"...","message":"..."}}.
type upstreamErrorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// message extracts a human-readable message, or "" if none is present.
func (b upstreamErrorBody) message() string {
	if len(b.Error) > 0 {
		var s string
		if json.Unmarshal(b.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(b.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return b.Message
}

// ParseResponseError reads the body of a non-2xx response and returns an
// UpstreamFailure AppError naming the upstream and its status. The body is
// fully consumed and closed.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.UpstreamFailure(
			fmt.Sprintf("%s returned status %d", upstream, resp.StatusCode),
			fmt.Errorf("read body: %w", err),
		)
	}

	detail := strings.TrimSpace(string(bodyBytes))
	var body upstreamErrorBody
	if json.Unmarshal(bodyBytes, &body) == nil {
		if msg := body.message(); msg != "" {
			detail = msg
		}
	}

	cause := &StatusError{Upstream: upstream, StatusCode: resp.StatusCode, Body: detail}
	return apperrors.UpstreamFailure(fmt.Sprintf("%s returned status %d", upstream, resp.StatusCode), cause)
}

// StatusError records a non-2xx upstream response.
type StatusError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Upstream, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Upstream, e.StatusCode, e.Body)
}
