// Package questrade provides a client for the Questrade trading API, including
// the OAuth2 refresh-token lifecycle and durable credential persistence.
package questrade

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// Provider is the key for Questrade records in the broker config file.
	Provider = "questrade"

	// DefaultLoginURL is the Questrade OAuth2 endpoint prefix.
	DefaultLoginURL = "https://login.questrade.com/oauth2/"

	// DefaultAPIVersion is the API version segment appended to the account server URL.
	DefaultAPIVersion = "v1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithLoginURL sets a custom OAuth2 endpoint prefix.
func WithLoginURL(loginURL string) ClientOption {
	return func(c *Client) {
		c.loginURL = loginURL
	}
}

// WithAPIVersion sets a custom API version segment.
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithHTTPClient sets a custom HTTP client for token endpoint calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit for API calls.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// AuthError represents a non-success response from the token endpoint. The
// response body is carried as diagnostic detail.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("questrade token refresh failed (status %d): %s", e.StatusCode, e.Body)
}

// SessionError indicates the liveness probe failed both before and after a
// forced token refresh. No further retries are attempted.
type SessionError struct {
	Cause error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("questrade session unusable after forced refresh: %v", e.Cause)
}

func (e *SessionError) Unwrap() error { return e.Cause }

// APIError represents an error from the Questrade API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("questrade API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}
