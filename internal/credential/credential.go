package credential

import (
	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

// Credential is everything needed to issue a request to one provider.
type Credential struct {
	Provider provider.Kind
	APIKey   Secret
	Model    string
	// BaseURL optionally overrides the descriptor's endpoint base, e.g. for
	// a self-hosted compatible gateway.
	BaseURL string
}

// Descriptor returns the catalog entry for the credential's provider.
func (c Credential) Descriptor() (provider.Descriptor, bool) {
	return provider.Lookup(c.Provider)
}

// Option customises a credential passed to Store.AddOrUpdate.
type Option func(*Credential)

// WithBaseURL sets the endpoint override.
func WithBaseURL(url string) Option {
	return func(c *Credential) { c.BaseURL = url }
}
