// Package credstore persists broker credentials as a TOML mapping keyed by
// provider name, one file per installation.
package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/brokerd/internal/common"
	"github.com/ternarybob/brokerd/internal/interfaces"
	"github.com/ternarybob/brokerd/internal/models"
)

// DefaultFileName is the credential file name inside the config directory.
const DefaultFileName = "brokers.toml"

// ParseError indicates the credential file exists but is malformed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse broker config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Store is a file-backed credential store. The directory is fixed at
// construction; there is no process-wide mutable default.
type Store struct {
	dir      string
	fileName string
	logger   arbor.ILogger
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithFileName overrides the credential file name.
func WithFileName(name string) StoreOption {
	return func(s *Store) {
		s.fileName = name
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a credential store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir:      dir,
		fileName: DefaultFileName,
		logger:   common.GetLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Path returns the resolved credential file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.fileName)
}

// Load reads and parses the full credential mapping. Returns
// interfaces.ErrConfigNotFound when the file does not exist and a *ParseError
// when the contents are malformed.
func (s *Store) Load() (map[string]*models.CredentialRecord, string, error) {
	path := s.Path()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, path, fmt.Errorf("%w: %s", interfaces.ErrConfigNotFound, path)
		}
		return nil, path, fmt.Errorf("failed to read broker config %s: %w", path, err)
	}

	var raw map[string]map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, path, &ParseError{Path: path, Err: err}
	}

	mapping := make(map[string]*models.CredentialRecord, len(raw))
	for provider, table := range raw {
		mapping[provider] = models.FromMap(table)
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("path", path).
			Int("providers", len(mapping)).
			Msg("Loaded broker config")
	}

	return mapping, path, nil
}

// Write serializes the full mapping back to disk, creating the containing
// directory if absent. An empty mapping is rejected before the filesystem is
// touched, guarding against clobbering a valid config with a blank one.
func (s *Store) Write(mapping map[string]*models.CredentialRecord) error {
	if len(mapping) == 0 {
		return interfaces.ErrEmptyConfig
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config dir %s: %w", s.dir, err)
	}

	raw := make(map[string]map[string]any, len(mapping))
	for provider, record := range mapping {
		raw[provider] = record.ToMap()
	}

	path := s.Path()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open broker config %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(raw); err != nil {
		return fmt.Errorf("failed to write broker config %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close broker config %s: %w", path, err)
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("path", path).
			Int("providers", len(mapping)).
			Msg("Wrote broker config")
	}

	return nil
}

// Ensure interface compliance
var _ interfaces.CredentialStore = (*Store)(nil)
