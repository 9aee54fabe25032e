package questrade

import (
	"context"
	"sync"

	"github.com/ternarybob/brokerd/internal/models"
)

// Session is a handle to a validated broker session. Closing it flushes the
// current credential state back through the store exactly once, so persisted
// state reflects the most recent successful refresh even if the caller's own
// work failed.
type Session struct {
	client *Client
	id     string

	closeOnce sync.Once
	closeErr  error
}

// ID returns the session correlation id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Record returns a snapshot of the credential record backing this session.
func (s *Session) Record() *models.CredentialRecord {
	return s.client.Record()
}

// Time retrieves the current server time over this session.
func (s *Session) Time(ctx context.Context) (*TimeResponse, error) {
	return s.client.Time(ctx)
}

// Accounts retrieves the accounts for the authenticated user over this session.
func (s *Session) Accounts(ctx context.Context) (*AccountsResponse, error) {
	return s.client.Accounts(ctx)
}

// Close persists the current credential state. Safe to call from any exit
// path; only the first call writes, later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.flush()
		if s.client.logger != nil {
			if s.closeErr != nil {
				s.client.logger.Warn().
					Str("session_id", s.id).
					Err(s.closeErr).
					Msg("Failed to persist broker credentials")
			} else {
				s.client.logger.Info().
					Str("session_id", s.id).
					Msg("Broker session closed, credentials persisted")
			}
		}
	})
	return s.closeErr
}
