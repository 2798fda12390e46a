package secrets

import (
	"errors"
	"fmt"
)

// ErrAuthentication indicates credentials could not be retrieved or the
// stored secret is unusable.
var ErrAuthentication = errors.New("credential retrieval failed")

// Credentials is the immutable credential set for the ISS API. Exactly one
// authentication shape must be populated: username/password for HTTP Basic,
// or client id/secret for the OAuth2 client-credentials grant.
type Credentials struct {
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
	Token        string `json:"token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// HasBasicAuth reports whether the username/password pair is populated.
func (c Credentials) HasBasicAuth() bool {
	return c.Username != "" && c.Password != ""
}

// HasClientCredentials reports whether the OAuth2 client pair is populated.
func (c Credentials) HasClientCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Validate requires at least one complete authentication shape. Having
// neither is a construction-time failure, not a fallback.
func (c Credentials) Validate() error {
	if !c.HasBasicAuth() && !c.HasClientCredentials() {
		return fmt.Errorf("%w: secret must contain either (username, password) or (client_id, client_secret)", ErrAuthentication)
	}
	return nil
}
