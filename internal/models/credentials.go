package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Known credential field keys in the broker config file. Any other keys are
// provider-specific and round-trip through Extra untouched.
const (
	KeyRefreshToken = "refresh_token"
	KeyAccessToken  = "access_token"
	KeyTokenType    = "token_type"
	KeyAPIServer    = "api_server"
	KeyExpiresIn    = "expires_in"
	KeyExpiresAt    = "expires_at"
)

// CredentialRecord is the persisted and in-memory unit of authentication state
// for one broker provider. Only the token lifecycle manager mutates it; the
// credential store marshals values verbatim.
type CredentialRecord struct {
	// RefreshToken is the long-lived secret used to mint new access tokens.
	RefreshToken string `validate:"required"`

	// AccessToken is the short-lived bearer token, absent before first acquisition.
	AccessToken string

	// TokenType is the Authorization header scheme prefix (e.g. "Bearer").
	TokenType string

	// APIServer is the base URL to target once authenticated.
	APIServer string

	// ExpiresIn is the seconds-until-expiry reported by the server at issuance.
	ExpiresIn int64

	// ExpiresAt is the absolute expiry instant, computed locally at refresh time
	// as now + ExpiresIn. This is the source of truth for staleness checks; the
	// server's relative duration is never reused directly.
	ExpiresAt time.Time

	// Extra holds provider-specific keys not known to this package, preserved
	// verbatim for round-trip fidelity.
	Extra map[string]any
}

// Clone returns an independent copy of the record, including the Extra map.
func (r *CredentialRecord) Clone() *CredentialRecord {
	out := *r
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for key, value := range r.Extra {
			out.Extra[key] = value
		}
	}
	return &out
}

// Validate checks the preconditions for a refresh attempt. A missing refresh
// token is fatal, not retryable.
func (r *CredentialRecord) Validate() error {
	return validate.Struct(r)
}

// Expired reports whether the access token must be refreshed as of now: the
// token is absent, or the absolute expiry has been reached.
func (r *CredentialRecord) Expired(now time.Time) bool {
	if r.AccessToken == "" {
		return true
	}
	return !now.Before(r.ExpiresAt)
}

// FromMap builds a record from a raw TOML table. Known keys map onto typed
// fields; everything else lands in Extra.
func FromMap(raw map[string]any) *CredentialRecord {
	r := &CredentialRecord{}
	for key, value := range raw {
		switch key {
		case KeyRefreshToken:
			r.RefreshToken = asString(value)
		case KeyAccessToken:
			r.AccessToken = asString(value)
		case KeyTokenType:
			r.TokenType = asString(value)
		case KeyAPIServer:
			r.APIServer = asString(value)
		case KeyExpiresIn:
			r.ExpiresIn = int64(asFloat(value))
		case KeyExpiresAt:
			// Persisted as fractional unix seconds.
			if secs := asFloat(value); secs > 0 {
				r.ExpiresAt = time.Unix(0, int64(secs*float64(time.Second))).UTC()
			}
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = value
		}
	}
	return r
}

// ToMap flattens the record back into a raw TOML table, merging Extra keys in.
func (r *CredentialRecord) ToMap() map[string]any {
	raw := make(map[string]any, len(r.Extra)+6)
	for key, value := range r.Extra {
		raw[key] = value
	}
	raw[KeyRefreshToken] = r.RefreshToken
	if r.AccessToken != "" {
		raw[KeyAccessToken] = r.AccessToken
	}
	if r.TokenType != "" {
		raw[KeyTokenType] = r.TokenType
	}
	if r.APIServer != "" {
		raw[KeyAPIServer] = r.APIServer
	}
	if r.ExpiresIn != 0 {
		raw[KeyExpiresIn] = r.ExpiresIn
	}
	if !r.ExpiresAt.IsZero() {
		raw[KeyExpiresAt] = float64(r.ExpiresAt.UnixNano()) / float64(time.Second)
	}
	return raw
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
