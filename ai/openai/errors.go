package openai

import (
	"fmt"
	"net/http"

	"github.com/teranos/strata/errors"
)

// APIError is a non-2xx reply from the server, or a 2xx reply whose body
// could not be decoded
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request to %s failed with status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("API request to %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// NetworkError is a transport failure that persisted through every retry
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of an APIError anywhere in err's chain, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNetworkError reports whether err is a NetworkError
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsAuthError reports a 401 or 403 reply
func IsAuthError(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryableStatus reports statuses worth another attempt
func IsRetryableStatus(code int) bool {
	return retryableStatus[code]
}
