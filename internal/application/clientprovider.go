// Package application contains use-case orchestration services.
package application

import (
	"sync"

	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// GitHubClientProvider resolves the GitHub client for an app connection and
// supports runtime hot-swap, so credential rotation takes effect without
// restarting the process. Connections without a dedicated client fall back to
// the default client, which may be nil when no credentials are configured.
type GitHubClientProvider struct {
	mu       sync.RWMutex
	fallback driven.GitHubClient
	bySlug   map[string]driven.GitHubClient
}

// NewGitHubClientProvider creates a provider with the given fallback client.
// fallback may be nil if no credentials are available at startup.
func NewGitHubClientProvider(fallback driven.GitHubClient) *GitHubClientProvider {
	return &GitHubClientProvider{
		fallback: fallback,
		bySlug:   make(map[string]driven.GitHubClient),
	}
}

// For returns the client for the given connection slug, or the fallback when
// no dedicated client is registered. Callers must check for nil.
func (p *GitHubClientProvider) For(slug string) driven.GitHubClient {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if client, ok := p.bySlug[slug]; ok {
		return client
	}
	return p.fallback
}

// Set registers or replaces the dedicated client for a connection slug. The
// next caller of For observes the new client.
func (p *GitHubClientProvider) Set(slug string, client driven.GitHubClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bySlug[slug] = client
}
