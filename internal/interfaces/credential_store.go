package interfaces

import (
	"errors"

	"github.com/ternarybob/brokerd/internal/models"
)

var (
	// ErrConfigNotFound is returned when the broker credential file does not exist.
	ErrConfigNotFound = errors.New("broker config file not found")

	// ErrEmptyConfig is returned when a write would clobber the credential file
	// with an empty mapping.
	ErrEmptyConfig = errors.New("refusing to write empty broker config")
)

// CredentialStore is a durable mapping from provider name to credential record.
// Implementations marshal records verbatim and never mutate field values.
type CredentialStore interface {
	// Load reads and parses the full credential mapping, returning the mapping
	// and the resolved file path it was read from.
	Load() (map[string]*models.CredentialRecord, string, error)

	// Write serializes the full mapping back to disk, creating the containing
	// directory if absent. Writing an empty mapping is an error.
	Write(mapping map[string]*models.CredentialRecord) error
}
