// Package auth provides bearer-token authentication for TheHive and Cortex.
package auth

import "net/http"

// Credentials holds a TheHive or Cortex API key.
//
// Both platforms authenticate with the same scheme: an API key sent as an
// HTTP bearer token.
type Credentials struct {
	APIKey string
}

// Apply adds the Authorization header to an HTTP request.
func (c *Credentials) Apply(req *http.Request) {
	if c == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
}

// Valid reports whether credentials are configured.
func (c *Credentials) Valid() bool {
	return c != nil && c.APIKey != ""
}
