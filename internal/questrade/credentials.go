package questrade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/brokerd/internal/interfaces"
	"github.com/ternarybob/brokerd/internal/models"
)

// LoadOrSeed returns the stored Questrade credential record, or seeds a new one
// from an operator-supplied refresh token when none exists. A missing config
// file is not an error here; a malformed one is.
func LoadOrSeed(store interfaces.CredentialStore, prompter interfaces.TokenPrompter, logger arbor.ILogger) (*models.CredentialRecord, error) {
	mapping, path, err := store.Load()
	if err != nil && !errors.Is(err, interfaces.ErrConfigNotFound) {
		return nil, err
	}

	record := mapping[Provider]
	if record != nil && record.RefreshToken != "" {
		if logger != nil {
			logger.Debug().
				Str("path", path).
				Msg("Loaded questrade credentials")
		}
		return record, nil
	}

	if logger != nil {
		logger.Warn().
			Str("path", path).
			Msg("No valid questrade refresh token found")
	}

	if prompter == nil {
		return nil, fmt.Errorf("no questrade refresh token in %s and no prompter available", path)
	}

	token, err := prompter.PromptRefreshToken(Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh token: %w", err)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty refresh token provided")
	}

	return &models.CredentialRecord{RefreshToken: token}, nil
}
