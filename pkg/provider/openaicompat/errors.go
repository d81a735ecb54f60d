package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/llmarena/arena/pkg/api"
)

// statusMessages is the fallback text for backends that return an empty or
// unparseable error body.
var statusMessages = map[int]string{
	http.StatusBadRequest:      "invalid request to backend",
	http.StatusUnauthorized:    "backend authentication failed",
	http.StatusForbidden:       "backend authentication failed",
	http.StatusNotFound:        "backend model or endpoint not found",
	http.StatusTooManyRequests: "backend rate limit exceeded",
}

// MapHTTPError converts a non-2xx backend response into a provider error
// coded "http_<status>". The backend's own message wins when the body
// carries one.
func MapHTTPError(resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)
	if message == "" {
		message = statusMessages[resp.StatusCode]
	}
	if message == "" {
		if resp.StatusCode >= http.StatusInternalServerError {
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		} else {
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)
		}
	}

	apiErr := api.NewProviderError(message)
	apiErr.Code = fmt.Sprintf("http_%d", resp.StatusCode)
	return apiErr
}

// MapNetworkError converts a transport failure into a provider error.
// Deadlines are reported as timeouts so logs separate slow backends from
// unreachable ones.
func MapNetworkError(err error) *api.APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		apiErr := api.NewProviderError("backend timed out")
		apiErr.Code = "timeout"
		return apiErr
	}
	return api.NewProviderError(fmt.Sprintf("backend connection error: %s", err.Error()))
}

// ExtractErrorMessage reads at most 4 KiB of an error body. It understands
// the {"error":{"message":...}} envelope and, for gateways that answer in
// plain text, a short single-line body.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil {
		return errResp.Error.Message
	}

	text := strings.TrimSpace(string(data))
	if text == "" || len(text) > 200 || strings.ContainsAny(text, "\n<{") {
		return ""
	}
	return text
}
