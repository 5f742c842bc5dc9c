package htmlpage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabd/annotate/internal/scanner"
)

func writePage(t *testing.T, path, doc string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFilePage_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	start := time.Now().Add(-time.Hour)
	writePage(t, path, newUIPage(""), start)

	fp, err := OpenFile(path, prURL)
	require.NoError(t, err)
	require.Len(t, fp.Regions(), 1)

	fp.Regions()[0].SetState(scanner.Done)
	assert.Equal(t, scanner.Done, fp.Regions()[0].State())
	assert.Zero(t, fp.Reloads())

	writePage(t, path, classicPage, start.Add(time.Minute))

	regions := fp.Regions()
	require.Len(t, regions, 2)
	assert.Equal(t, "abc123", regions[0].Hash())
	assert.Equal(t, scanner.Unseen, regions[0].State())
	assert.Equal(t, 1, fp.Reloads())
	assert.Equal(t, 1, fp.Generation())
}

func TestFilePage_KeepsPageWhenFileDisappears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	writePage(t, path, newUIPage(""), time.Now())

	fp, err := OpenFile(path, prURL)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	require.Len(t, fp.Regions(), 1)
	id, err := fp.Identity()
	require.NoError(t, err)
	assert.Equal(t, "demo", id.Repo)

	var buf bytes.Buffer
	require.NoError(t, fp.Render(&buf))
	assert.Contains(t, buf.String(), "hello world")
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.html"), prURL)
	assert.Error(t, err)
}
