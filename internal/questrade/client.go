package questrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ternarybob/brokerd/internal/interfaces"
	"github.com/ternarybob/brokerd/internal/models"
)

// Client owns the credential state for one Questrade login and guarantees that
// any request it issues carries a currently-valid access token. Refresh and
// probe operations are serialized per client; concurrent refreshes against the
// same refresh token risk the remote service invalidating one of the results.
type Client struct {
	loginURL   string
	apiVersion string
	record     *models.CredentialRecord
	store      interfaces.CredentialStore
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter

	// mu serializes refresh and probe against one credential record.
	mu sync.Mutex

	// sessMu guards the prepared session, which is swapped on every refresh.
	sessMu  sync.RWMutex
	api     *http.Client
	baseURL string
}

// NewClient creates a client around an existing credential record. The record
// is mutated in place on every successful refresh and flushed back through the
// store when a session closes.
func NewClient(record *models.CredentialRecord, store interfaces.CredentialStore, opts ...ClientOption) *Client {
	c := &Client{
		loginURL:   DefaultLoginURL,
		apiVersion: DefaultAPIVersion,
		record:     record,
		store:      store,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Record returns a snapshot of the current credential record. The keep-alive
// scheduler refreshes the live record concurrently, so callers get a copy
// rather than a pointer into mutable state.
func (c *Client) Record() *models.CredentialRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.Clone()
}

// EnsureAccess refreshes the access token if force is set, the token is
// absent, or its absolute expiry has been reached, then prepares the
// authenticated session (auth header transport, base URL). Returns the updated
// record.
func (c *Client) EnsureAccess(ctx context.Context, force bool) (*models.CredentialRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureAccess(ctx, force); err != nil {
		return nil, err
	}
	return c.record, nil
}

// ensureAccess is the unlocked core of EnsureAccess. Callers must hold c.mu.
func (c *Client) ensureAccess(ctx context.Context, force bool) error {
	if force || c.record.Expired(time.Now()) {
		if err := c.refresh(ctx); err != nil {
			return err
		}
	}
	c.prepareSession(ctx)
	return nil
}

// refresh exchanges the stored refresh token for a new access token and merges
// the response into the record. The new absolute expiry is computed from the
// local clock at the moment of refresh, never re-trusted from disk.
func (c *Client) refresh(ctx context.Context) error {
	if err := c.record.Validate(); err != nil {
		return fmt.Errorf("refresh token is required: %w", err)
	}

	params := url.Values{}
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", c.record.RefreshToken)

	reqURL := c.loginURL + "token?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.loginURL+"token").
			Msg("Requesting access token")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	now := time.Now()
	c.record.AccessToken = token.AccessToken
	c.record.TokenType = token.TokenType
	c.record.APIServer = token.APIServer
	c.record.ExpiresIn = token.ExpiresIn
	c.record.ExpiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	if token.RefreshToken != "" {
		c.record.RefreshToken = token.RefreshToken
	}

	if c.logger != nil {
		c.logger.Info().
			Str("api_server", c.record.APIServer).
			Str("expires_at", c.record.ExpiresAt.Format(time.RFC3339)).
			Msg("Access token refreshed")
	}

	return nil
}

// prepareSession rebuilds the authenticated API client from the current record:
// an oauth2 transport carrying "<token_type> <access_token>" and the account
// server base URL with the API version appended.
func (c *Client) prepareSession(ctx context.Context) {
	token := &oauth2.Token{
		AccessToken: c.record.AccessToken,
		TokenType:   c.record.TokenType,
		Expiry:      c.record.ExpiresAt,
	}

	api := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	api.Timeout = c.httpClient.Timeout

	c.sessMu.Lock()
	c.api = api
	c.baseURL = strings.TrimSuffix(c.record.APIServer, "/") + "/" + c.apiVersion
	c.sessMu.Unlock()
}

// get performs an authenticated GET against the API.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	c.sessMu.RLock()
	api, baseURL := c.api, c.baseURL
	c.sessMu.RUnlock()
	if api == nil {
		return fmt.Errorf("no authenticated session, call EnsureAccess first")
	}

	reqURL := baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", reqURL).
			Msg("Questrade API request")
	}

	resp, err := api.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Time retrieves the current server time. This is the cheapest authenticated
// call the API offers, which makes it the liveness probe.
func (c *Client) Time(ctx context.Context) (*TimeResponse, error) {
	var result TimeResponse
	if err := c.get(ctx, "time", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Accounts retrieves the accounts for the authenticated user.
func (c *Client) Accounts(ctx context.Context) (*AccountsResponse, error) {
	var result AccountsResponse
	if err := c.get(ctx, "accounts", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenSession ensures access, validates the credentials with a liveness probe,
// and hands out a session handle. A failed probe triggers exactly one forced
// refresh and one re-probe; a second failure is terminal, avoiding unbounded
// retries against a revoked credential. A failed open never writes the store.
func (c *Client) OpenSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureAccess(ctx, false); err != nil {
		return nil, err
	}

	if _, err := c.Time(ctx); err != nil {
		if c.logger != nil {
			c.logger.Warn().
				Err(err).
				Msg("Liveness probe failed, forcing token refresh")
		}

		if err := c.ensureAccess(ctx, true); err != nil {
			return nil, err
		}
		if _, err := c.Time(ctx); err != nil {
			return nil, &SessionError{Cause: err}
		}
	}

	session := &Session{
		client: c,
		id:     "ses_" + uuid.New().String(),
	}

	if c.logger != nil {
		c.logger.Info().
			Str("session_id", session.id).
			Str("api_server", c.record.APIServer).
			Msg("Broker session opened")
	}

	return session, nil
}

// RevokeAccess invalidates the current refresh token server-side. This is
// best-effort: failures are logged, never propagated, so a revoke cannot block
// process shutdown.
func (c *Client) RevokeAccess(ctx context.Context) {
	c.mu.Lock()
	refreshToken := c.record.RefreshToken
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL+"revoke", nil)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("Failed to create revoke request")
		}
		return
	}
	req.Header.Set("token", refreshToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("Token revocation failed")
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		if c.logger != nil {
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Msg("Token revocation rejected")
		}
		return
	}

	if c.logger != nil {
		c.logger.Info().Msg("Refresh token revoked")
	}
}

// flush persists the current record through the credential store, merging over
// the on-disk mapping so other providers' entries survive.
func (c *Client) flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mapping, _, err := c.store.Load()
	if err != nil {
		if !errors.Is(err, interfaces.ErrConfigNotFound) {
			return err
		}
		mapping = make(map[string]*models.CredentialRecord)
	}

	mapping[Provider] = c.record
	return c.store.Write(mapping)
}
