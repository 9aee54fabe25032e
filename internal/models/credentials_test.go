package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRecord_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		record CredentialRecord
		want   bool
	}{
		{"no access token", CredentialRecord{RefreshToken: "abc"}, true},
		{"token present, no expiry", CredentialRecord{RefreshToken: "abc", AccessToken: "tok"}, true},
		{"expired", CredentialRecord{AccessToken: "tok", ExpiresAt: now.Add(-time.Second)}, true},
		{"expiring exactly now", CredentialRecord{AccessToken: "tok", ExpiresAt: now}, true},
		{"still valid", CredentialRecord{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.record.Expired(now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredentialRecord_Clone(t *testing.T) {
	record := &CredentialRecord{
		RefreshToken: "abc",
		AccessToken:  "tok",
		Extra:        map[string]any{"account_id": "123"},
	}

	clone := record.Clone()
	clone.RefreshToken = "changed"
	clone.Extra["account_id"] = "999"

	assert.Equal(t, "abc", record.RefreshToken)
	assert.Equal(t, "123", record.Extra["account_id"])
}

func TestCredentialRecord_Validate(t *testing.T) {
	record := &CredentialRecord{}
	require.Error(t, record.Validate())

	record.RefreshToken = "abc"
	require.NoError(t, record.Validate())
}

func TestCredentialRecord_MapRoundTrip(t *testing.T) {
	expiresAt := time.Now().UTC().Add(30 * time.Minute)
	record := &CredentialRecord{
		RefreshToken: "abc2",
		AccessToken:  "X",
		TokenType:    "Bearer",
		APIServer:    "https://x/",
		ExpiresIn:    1800,
		ExpiresAt:    expiresAt,
		Extra:        map[string]any{"account_id": "123"},
	}

	got := FromMap(record.ToMap())

	assert.Equal(t, record.RefreshToken, got.RefreshToken)
	assert.Equal(t, record.AccessToken, got.AccessToken)
	assert.Equal(t, record.TokenType, got.TokenType)
	assert.Equal(t, record.APIServer, got.APIServer)
	assert.Equal(t, record.ExpiresIn, got.ExpiresIn)
	assert.WithinDuration(t, expiresAt, got.ExpiresAt, time.Microsecond)
	assert.Equal(t, "123", got.Extra["account_id"])
}

func TestFromMap_NumericVariants(t *testing.T) {
	// TOML decodes integers as int64 and floats as float64; both must work.
	got := FromMap(map[string]any{
		"refresh_token": "abc",
		"expires_in":    int64(1800),
		"expires_at":    float64(1700000000.5),
	})

	assert.Equal(t, int64(1800), got.ExpiresIn)
	assert.WithinDuration(t, time.Unix(1700000000, int64(500*time.Millisecond)), got.ExpiresAt, time.Microsecond)
}

func TestToMap_OmitsAbsentOptionalFields(t *testing.T) {
	raw := (&CredentialRecord{RefreshToken: "abc"}).ToMap()

	assert.Equal(t, "abc", raw[KeyRefreshToken])
	assert.NotContains(t, raw, KeyAccessToken)
	assert.NotContains(t, raw, KeyTokenType)
	assert.NotContains(t, raw, KeyAPIServer)
	assert.NotContains(t, raw, KeyExpiresIn)
	assert.NotContains(t, raw, KeyExpiresAt)
}
