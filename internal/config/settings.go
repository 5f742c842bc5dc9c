package config

import (
	"net/url"
	"strings"
)

// Clipboard tracking modes.
const (
	TrackingNone   = "none"
	TrackingAll    = "all"
	TrackingKnown  = "known"
	TrackingCustom = "custom"
)

// Settings is the user's integration settings snapshot. It is read-only for
// the components that consume it.
type Settings struct {
	ClipboardTracking string `koanf:"clipboard_tracking" json:"clipboardTracking"`
	CustomDomains     string `koanf:"custom_domains" json:"customDomains"`
	GithubIntegration bool   `koanf:"github_integration" json:"githubIntegration"`
	GithubToken       string `koanf:"github_token" json:"-"`
}

// KnownSites are the developer sites tracked in "known" mode. Entries with a
// path only match URLs under that path.
var KnownSites = []string{
	"github.com",
	"gitlab.com",
	"bitbucket.org",
	"stackoverflow.com",
	"stackexchange.com",
	"developer.mozilla.org",
	"docs.python.org",
	"docs.microsoft.com",
	"docs.google.com",
	"nodejs.org",
	"reactjs.org",
	"vuejs.org",
	"angular.io",
	"laravel.com",
	"django-project.com",
	"flask.palletsprojects.com",
	"fastapi.tiangolo.com",
	"spring.io",
	"kubernetes.io",
	"docker.com",
	"aws.amazon.com",
	"cloud.google.com",
	"azure.microsoft.com",
	"digitalocean.com",
	"heroku.com",
	"netlify.com",
	"vercel.com",
	"codepen.io",
	"jsfiddle.net",
	"codesandbox.io",
	"replit.com",
	"glitch.com",
	"medium.com",
	"dev.to",
	"hashnode.com",
	"freecodecamp.org",
	"w3schools.com",
	"tutorialspoint.com",
	"geeksforgeeks.org",
	"leetcode.com",
	"hackerrank.com",
	"codewars.com",
	"topcoder.com",
	"codeforces.com",
	"atcoder.jp",
	"reddit.com/r/programming",
	"reddit.com/r/webdev",
	"reddit.com/r/javascript",
	"reddit.com/r/python",
	"hackernews.ycombinator.com",
}

// Domains returns the custom domain list, one entry per non-blank line or
// comma separated item.
func (s Settings) Domains() []string {
	fields := strings.FieldsFunc(s.CustomDomains, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

// TrackingEnabled reports whether clipboard copies on pageURL are recorded.
func (s Settings) TrackingEnabled(pageURL string) bool {
	switch s.ClipboardTracking {
	case TrackingNone:
		return false
	case TrackingAll:
		return true
	}

	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	switch s.ClipboardTracking {
	case TrackingKnown:
		for _, site := range KnownSites {
			domain, path, hasPath := strings.Cut(site, "/")
			if !hostMatches(host, domain) {
				continue
			}
			if !hasPath || strings.HasPrefix(u.Path, "/"+path) {
				return true
			}
		}
	case TrackingCustom:
		for _, domain := range s.Domains() {
			if hostMatches(host, strings.TrimPrefix(domain, "*.")) {
				return true
			}
		}
	}
	return false
}

// hostMatches reports whether host is domain or one of its subdomains.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
