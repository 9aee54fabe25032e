package interfaces

// TokenPrompter requests an initial refresh token from the operator when no
// stored credentials exist for a provider.
type TokenPrompter interface {
	PromptRefreshToken(provider string) (string, error)
}
