package htmlpage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tabd/annotate/internal/merge"
	"github.com/tabd/annotate/internal/provenance"
)

var (
	prPathRe      = regexp.MustCompile(`/([^/]+)/([^/]+)/pull/(\d+)`)
	comparePathRe = regexp.MustCompile(`/([^/]+)/([^/]+)/compare/([^/]+)`)
	diffPageRe    = regexp.MustCompile(`^https://github\.com/[^/]+/[^/]+/(pull/\d+/files|compare/[^/]+)`)
)

var embeddedDataTargets = map[string]bool{
	"react-app.embeddedData":     true,
	"react-partial.embeddedData": true,
}

// IsDiffPage reports whether pageURL is a pull request files page or a
// compare page.
func IsDiffPage(pageURL string) bool {
	return diffPageRe.MatchString(pageURL)
}

// embeddedData merges the JSON payloads of the page's embedded data scripts
// in document order.
func embeddedData(root *html.Node) (map[string]any, error) {
	scripts := findAll(root, func(n *html.Node) bool {
		if !isElement(n, atom.Script) {
			return false
		}
		typ, _ := attr(n, "type")
		target, _ := attr(n, "data-target")
		return typ == "application/json" && embeddedDataTargets[target]
	})

	docs := make([]map[string]any, 0, len(scripts))
	for _, s := range scripts {
		var doc map[string]any
		if err := json.Unmarshal([]byte(textContent(s)), &doc); err != nil {
			return nil, fmt.Errorf("%w: embedded data: %v", provenance.ErrInvalidPage, err)
		}
		docs = append(docs, doc)
	}
	return merge.All(docs...), nil
}

// lookup walks nested objects along keys.
func lookup(doc map[string]any, keys ...string) (any, bool) {
	var cur any = doc
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func lookupString(doc map[string]any, keys ...string) string {
	v, _ := lookup(doc, keys...)
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func lookupInt(doc map[string]any, keys ...string) (int, bool) {
	v, _ := lookup(doc, keys...)
	switch t := v.(type) {
	case float64:
		return int(t), t != 0
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil && n != 0
	}
	return 0, false
}

func extractIdentity(root *html.Node, pageURL string) (provenance.DiffIdentity, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return provenance.DiffIdentity{}, fmt.Errorf("%w: %v", provenance.ErrInvalidPage, err)
	}
	path := u.EscapedPath()

	if prPathRe.MatchString(path) {
		data, err := embeddedData(root)
		if err != nil {
			return provenance.DiffIdentity{}, err
		}
		if id, ok := pullRequestIdentity(root, data); ok {
			return id, nil
		}
	}

	if m := comparePathRe.FindStringSubmatch(path); m != nil {
		data, err := embeddedData(root)
		if err != nil {
			log.Debug().Err(err).Str("page", pageURL).Msg("Compare page embedded data unreadable")
			return provenance.DiffIdentity{}, err
		}
		return compareIdentity(m[1], m[2], m[3], data)
	}

	return provenance.DiffIdentity{}, fmt.Errorf("%w: %s", provenance.ErrInvalidPage, pageURL)
}

func pullRequestIdentity(root *html.Node, data map[string]any) (provenance.DiffIdentity, bool) {
	if pr, ok := lookup(data, "payload", "pullRequest"); ok {
		if _, isMap := pr.(map[string]any); isMap {
			id := provenance.DiffIdentity{
				Owner: lookupString(data, "payload", "pullRequest", "headRepositoryOwnerLogin"),
				Repo:  lookupString(data, "payload", "pullRequest", "headRepositoryName"),
				Base:  lookupString(data, "payload", "pullRequest", "baseBranch"),
				Head:  lookupString(data, "payload", "pullRequest", "headBranch"),
			}
			if n, ok := lookupInt(data, "payload", "pullRequest", "number"); ok {
				id.PR = &n
			}
			return id, true
		}
	}

	number, hasNumber := lookupInt(data, "props", "number")
	repo := lookupString(data, "props", "repo")
	base := lookupString(data, "props", "currentTopic", "refInfo", "name")
	if !hasNumber || repo == "" || base == "" {
		return provenance.DiffIdentity{}, false
	}

	branch := findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "clipboard-copy" && hasClass(n, "js-copy-branch")
	})
	if branch == nil {
		return provenance.DiffIdentity{}, false
	}
	head, _ := attr(branch, "value")
	if head == "" {
		return provenance.DiffIdentity{}, false
	}

	return provenance.DiffIdentity{
		Owner: lookupString(data, "props", "owner"),
		Repo:  repo,
		PR:    &number,
		Base:  base,
		Head:  head,
	}, true
}

// compareIdentity reads /<owner>/<repo>/compare/<base>...<head>. A bare
// /compare/<head> compares against the repository's current default ref.
func compareIdentity(owner, repo, ref string, data map[string]any) (provenance.DiffIdentity, error) {
	if !strings.Contains(ref, "...") {
		base := lookupString(data, "props", "currentTopic", "refInfo", "name")
		if base == "" {
			return provenance.DiffIdentity{}, fmt.Errorf("%w: compare page without base ref", provenance.ErrInvalidPage)
		}
		ref = base + "..." + ref
	}

	parts := strings.Split(ref, "...")
	return provenance.DiffIdentity{
		Owner: owner,
		Repo:  repo,
		Base:  parts[0],
		Head:  parts[1],
	}, nil
}
