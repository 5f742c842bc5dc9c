package annotation

import (
	"github.com/tabd/annotate/internal/config"
	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/providers/github"
	"github.com/tabd/annotate/internal/resolver"
	"github.com/tabd/annotate/internal/scanner"
)

// NewGitHubClient creates the API client described by cfg.
func NewGitHubClient(cfg *config.Config) *github.Client {
	return github.NewClient(github.Options{
		APIURL:       cfg.GitHub.APIURL,
		Token:        cfg.Settings.GithubToken,
		FetchTimeout: cfg.GitHub.FetchTimeout,
		RateLimit:    cfg.GitHub.RateLimit,
		RateBurst:    cfg.GitHub.RateBurst,
	})
}

// NewResolver creates a change log resolver for id backed by client.
func NewResolver(client *github.Client, id provenance.DiffIdentity) *resolver.Resolver {
	return resolver.New(client, id, resolver.WithAPIURL(client.APIURL()))
}

// ResolverFactory returns a scanner.ResolverFactory that builds a fresh
// resolver, with empty caches, for every new identity.
func ResolverFactory(client *github.Client) scanner.ResolverFactory {
	return func(id provenance.DiffIdentity) scanner.ChangeLogSource {
		return NewResolver(client, id)
	}
}
