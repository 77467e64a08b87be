package quotes

import (
	"sync"

	"github.com/rickgao/quotefeed/internal/auth"
)

// CredentialCell holds the credential used by every poll cycle.
type CredentialCell struct {
	mu    sync.RWMutex
	creds *auth.Credentials
}

// Set installs c, replacing any previous credential.
func (c *CredentialCell) Set(creds auth.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = &creds
}

// Get returns the installed credential.
func (c *CredentialCell) Get() (auth.Credentials, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.creds == nil {
		return auth.Credentials{}, false
	}
	return *c.creds, true
}
