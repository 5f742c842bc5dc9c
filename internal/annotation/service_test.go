package annotation

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabd/annotate/internal/config"
	"github.com/tabd/annotate/internal/overlay"
	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/retry"
	"github.com/tabd/annotate/internal/scanner"
)

const pageURL = "https://github.com/octo/demo/pull/12/files"

var fileHash = provenance.Hash("main.go")

var pageHTML = []byte(`<html><body>
<script type="application/json" data-target="react-app.embeddedData">{"payload":{"pullRequest":{"headRepositoryOwnerLogin":"octo","headRepositoryName":"demo","number":12,"baseBranch":"main","headBranch":"feat"}}}</script>
<table data-diff-anchor="diff-` + fileHash + `"><tbody>
<tr><td class="diff-text-cell" data-line-anchor="diff-` + fileHash + `R1"><div class="diff-text-inner">package main</div></td></tr>
</tbody></table>
</body></html>`)

type staticSource map[string]*provenance.ChangeLog

func (s staticSource) Resolve(_ context.Context, hash string) (*provenance.ChangeLog, error) {
	if cl, ok := s[hash]; ok {
		return cl, nil
	}
	return nil, provenance.ErrNotFound
}

type pageFunc func(ctx context.Context, url string) ([]byte, error)

func (f pageFunc) FetchPage(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func testConfig() Config {
	return Config{
		Settings:     config.Settings{GithubIntegration: true},
		Labeler:      overlay.Labeler{Location: time.UTC},
		WaitAttempts: 2,
		WaitSchedule: retry.LinearCapped{Step: time.Millisecond, Cap: 2 * time.Millisecond},
		PageRetry:    retry.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, ShouldRetry: retry.IsTransient},
	}
}

func factory(src scanner.ChangeLogSource) scanner.ResolverFactory {
	return func(provenance.DiffIdentity) scanner.ChangeLogSource { return src }
}

func aiLog() *provenance.ChangeLog {
	return &provenance.ChangeLog{Version: 1, Changes: []provenance.ChangeRecord{{
		Kind:      provenance.KindAIGenerated,
		Range:     provenance.Range{End: provenance.Position{Character: 7}},
		CreatedAt: 1712345678901,
		AIName:    "Copilot",
	}}}
}

func TestProcessPage_InlineHTML(t *testing.T) {
	svc := NewService(nil, factory(staticSource{fileHash: aiLog()}), testConfig())

	res, err := svc.ProcessPage(context.Background(), Request{PageURL: pageURL, HTML: pageHTML, Wait: true})
	require.NoError(t, err)

	require.NotNil(t, res.Identity)
	assert.Equal(t, "octo", res.Identity.Owner)
	assert.Equal(t, 1, res.Report.Annotated)

	require.Len(t, res.Lines, 1)
	line := res.Lines[0]
	assert.Equal(t, fileHash, line.Hash)
	assert.Equal(t, 0, line.Line)
	require.Len(t, line.Segments, 2)
	assert.Equal(t, "package", line.Segments[0].Text)
	assert.Equal(t, "AI Generated under your control • Copilot • Created at: 4/5/2024, 7:34:38 PM", line.Segments[0].Label)
	assert.Equal(t, " main", line.Segments[1].Text)

	var buf bytes.Buffer
	require.NoError(t, res.Render(&buf))
	assert.Contains(t, buf.String(), `data-tabd-kind="AI_GENERATED"`)
}

func TestProcessPage_DownloadsWithRetry(t *testing.T) {
	calls := 0
	pages := pageFunc(func(ctx context.Context, url string) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, &provenance.RequestFailedError{Status: 502, URL: url}
		}
		return pageHTML, nil
	})

	svc := NewService(pages, factory(staticSource{}), testConfig())
	res, err := svc.ProcessPage(context.Background(), Request{PageURL: pageURL})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, res.Report.NotFound)
	assert.Empty(t, res.Lines)
	assert.NotNil(t, res.Lines)
}

func TestProcessPage_DownloadPermanentFailure(t *testing.T) {
	calls := 0
	pages := pageFunc(func(ctx context.Context, url string) ([]byte, error) {
		calls++
		return nil, &provenance.RequestFailedError{Status: 404, URL: url}
	})

	svc := NewService(pages, factory(staticSource{}), testConfig())
	_, err := svc.ProcessPage(context.Background(), Request{PageURL: pageURL})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var rf *provenance.RequestFailedError
	assert.True(t, errors.As(err, &rf))
}

func TestProcessPage_WaitTimesOutWithoutRegions(t *testing.T) {
	svc := NewService(nil, factory(staticSource{}), testConfig())

	_, err := svc.ProcessPage(context.Background(), Request{PageURL: pageURL, HTML: []byte(`<html></html>`), Wait: true})
	assert.ErrorIs(t, err, scanner.ErrContentTimeout)
}

func TestProcessPage_IntegrationDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Settings.GithubIntegration = false
	svc := NewService(nil, factory(staticSource{fileHash: aiLog()}), cfg)

	res, err := svc.ProcessPage(context.Background(), Request{PageURL: pageURL, HTML: pageHTML})
	require.NoError(t, err)
	assert.True(t, res.Report.Halted)
	assert.Empty(t, res.Lines)
}

func TestConfigFrom(t *testing.T) {
	var cfg config.Config
	cfg.Settings.GithubIntegration = true
	cfg.Scanner.WaitAttempts = 4
	cfg.Scanner.WaitStep = 50 * time.Millisecond
	cfg.Scanner.WaitCap = time.Second

	got := ConfigFrom(&cfg)
	assert.True(t, got.Settings.GithubIntegration)
	assert.Equal(t, 4, got.WaitAttempts)
	assert.Equal(t, retry.LinearCapped{Step: 50 * time.Millisecond, Cap: time.Second}, got.WaitSchedule)
}
