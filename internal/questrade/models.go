package questrade

// TokenResponse is the payload returned by the OAuth2 token endpoint. Every
// grant rotates the refresh token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	APIServer    string `json:"api_server"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// TimeResponse is the server time payload, used as the liveness probe.
type TimeResponse struct {
	Time string `json:"time"`
}

// Account represents a single brokerage account.
type Account struct {
	Type              string `json:"type"`
	Number            string `json:"number"`
	Status            string `json:"status"`
	IsPrimary         bool   `json:"isPrimary"`
	IsBilling         bool   `json:"isBilling"`
	ClientAccountType string `json:"clientAccountType"`
}

// AccountsResponse is the payload of the accounts endpoint.
type AccountsResponse struct {
	Accounts []Account `json:"accounts"`
	UserID   int       `json:"userId"`
}
