package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabd/annotate/internal/provenance"
)

const api = "https://api.test"

// fakeFetcher serves canned JSON bodies by URL and counts requests.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeFetcher) FetchJSON(_ context.Context, url string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, &provenance.RequestFailedError{Status: http.StatusNotFound, URL: url}
	}
	return json.RawMessage(body), nil
}

func (f *fakeFetcher) set(url string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.bodies[url] = string(data)
}

func (f *fakeFetcher) count(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for url, c := range f.calls {
		if strings.Contains(url, substr) {
			n += c
		}
	}
	return n
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func changeJSON(kind string, line, from, to int) string {
	return fmt.Sprintf(`{"type":%q,"start":{"line":%d,"character":%d},"end":{"line":%d,"character":%d},"creationTimestamp":1712345678901,"author":"alice"}`,
		kind, line, from, line, to)
}

// addFragment registers a log fragment reachable through the contents API.
func addFragment(f *fakeFetcher, name, body string) compareFile {
	contents := api + "/repos/o/r/contents/" + name + "?ref=head"
	file := api + "/repos/o/r/contents/" + name
	f.set(contents, map[string]string{"url": file})
	f.set(file, map[string]string{"content": b64(body), "encoding": "base64"})
	return compareFile{Filename: name, Status: "added", ContentsURL: contents}
}

func setCompare(f *fakeFetcher, files ...compareFile) {
	f.set(api+"/repos/o/r/compare/main...feat?per_page=100&page=1", map[string]interface{}{"files": files})
}

func identity(base, head string) provenance.DiffIdentity {
	return provenance.DiffIdentity{Owner: "o", Repo: "r", Base: base, Head: head}
}

func TestResolve_DirectNotesPath(t *testing.T) {
	f := newFakeFetcher()
	hash := provenance.Hash("src/app.go")

	f.set(api+"/repos/o/r/git/ref/notes/tabd__feat__"+hash, map[string]interface{}{"object": map[string]string{"url": api + "/commit"}})
	f.set(api+"/commit", map[string]interface{}{"tree": map[string]string{"url": api + "/tree"}})
	f.set(api+"/tree", map[string]interface{}{"tree": []map[string]string{{"url": api + "/blob"}}})
	note := `{"version":1,"changes":[` + changeJSON("AI_GENERATED", 0, 0, 4) + `]}`
	// GitHub wraps blob content with newlines.
	encoded := b64(note)
	f.set(api+"/blob", map[string]string{"content": encoded[:10] + "\n" + encoded[10:], "encoding": "base64"})

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	res, err := r.Lookup(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, SourceNotes, res.From)
	require.Equal(t, 1, res.Log.Len())
	assert.Equal(t, provenance.KindAIGenerated, res.Log.Changes[0].Kind)
	assert.Zero(t, f.count("/compare/"))
}

func TestResolve_FallbackWhenNotesMissing(t *testing.T) {
	f := newFakeFetcher()
	path := "src/app.go"
	hash := provenance.Hash(path)

	setCompare(f,
		compareFile{Filename: path, Status: "modified"},
		addFragment(f, ".tabd/log/src/app.go/tabd-1.json", `{"version":1,"changes":[`+changeJSON("PASTE", 2, 0, 3)+`]}`),
	)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	res, err := r.Lookup(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, SourceLogFiles, res.From)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, []string{".tabd/log/src/app.go/tabd-1.json"}, res.Fragments)
	require.Equal(t, 1, res.Log.Len())
	assert.Equal(t, provenance.KindPaste, res.Log.Changes[0].Kind)
	assert.Equal(t, 1, f.count("/git/ref/notes/"))
}

func TestResolve_MissingBaseSkipsFallback(t *testing.T) {
	f := newFakeFetcher()
	setCompare(f, compareFile{Filename: "a.go"})

	r := New(f, identity("", "feat"), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), provenance.Hash("a.go"))
	assert.ErrorIs(t, err, provenance.ErrNotFound)
	assert.Zero(t, f.count("/compare/"))
	assert.Equal(t, 1, f.count("/git/ref/notes/"))
}

func TestResolve_MissingHeadSkipsEverything(t *testing.T) {
	f := newFakeFetcher()

	r := New(f, identity("main", ""), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), provenance.Hash("a.go"))
	assert.ErrorIs(t, err, provenance.ErrNotFound)
	assert.Zero(t, f.count(""))
}

func TestResolve_HiddenPathRejected(t *testing.T) {
	f := newFakeFetcher()
	path := ".tabd/secret"
	setCompare(f,
		compareFile{Filename: path, Status: "added"},
		addFragment(f, ".tabd/log/.tabd/secret/tabd-1.json", `{"changes":[`+changeJSON("USER_EDIT", 0, 0, 1)+`]}`),
	)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), provenance.Hash(path))
	assert.ErrorIs(t, err, provenance.ErrNotFound)
	assert.Zero(t, f.count("/contents/"))
}

func TestResolve_NestedHiddenSegmentRejected(t *testing.T) {
	assert.True(t, hidden("src/.env"))
	assert.True(t, hidden(".github/workflows/ci.yml"))
	assert.False(t, hidden("src/app.go"))
	assert.False(t, hidden("a.b/c"))
}

func TestResolve_MergesFragmentsInFilenameOrder(t *testing.T) {
	f := newFakeFetcher()
	path := "main.go"
	second := addFragment(f, ".tabd/log/main.go/tabd-2.json", `{"changes":[`+changeJSON("AI_GENERATED", 1, 0, 2)+`]}`)
	first := addFragment(f, ".tabd/log/main.go/tabd-1.json", `{"version":1,"changes":[`+changeJSON("USER_EDIT", 0, 0, 1)+`]}`)
	removed := addFragment(f, ".tabd/log/main.go/tabd-3.json", `{"changes":[`+changeJSON("PASTE", 2, 0, 1)+`]}`)
	removed.Status = "removed"
	other := addFragment(f, ".tabd/log/main.go.bak/tabd-1.json", `{"changes":[`+changeJSON("PASTE", 3, 0, 1)+`]}`)

	setCompare(f, second, compareFile{Filename: path, Status: "modified"}, removed, first, other)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	res, err := r.Lookup(context.Background(), provenance.Hash(path))
	require.NoError(t, err)

	require.Equal(t, 2, res.Log.Len())
	assert.Equal(t, provenance.KindUserEdit, res.Log.Changes[0].Kind)
	assert.Equal(t, provenance.KindAIGenerated, res.Log.Changes[1].Kind)
	assert.Equal(t, 1, res.Log.Version)
	assert.Equal(t, []string{".tabd/log/main.go/tabd-1.json", ".tabd/log/main.go/tabd-2.json"}, res.Fragments)
	assert.Zero(t, f.count("tabd-3.json"))
}

func TestResolve_NoChangesIsNotFound(t *testing.T) {
	f := newFakeFetcher()
	path := "main.go"
	setCompare(f,
		compareFile{Filename: path, Status: "modified"},
		addFragment(f, ".tabd/log/main.go/tabd-1.json", `{"version":1,"changes":[]}`),
	)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), provenance.Hash(path))
	assert.ErrorIs(t, err, provenance.ErrNotFound)
}

func TestResolve_EmptyNoteFallsThrough(t *testing.T) {
	f := newFakeFetcher()
	path := "main.go"
	hash := provenance.Hash(path)

	f.set(api+"/repos/o/r/git/ref/notes/tabd__feat__"+hash, map[string]interface{}{"object": map[string]string{"url": api + "/commit"}})
	f.set(api+"/commit", map[string]interface{}{"tree": map[string]string{"url": api + "/tree"}})
	f.set(api+"/tree", map[string]interface{}{"tree": []map[string]string{{"url": api + "/blob"}}})
	f.set(api+"/blob", map[string]string{"content": b64(`{"changes":[]}`), "encoding": "base64"})
	setCompare(f,
		compareFile{Filename: path, Status: "modified"},
		addFragment(f, ".tabd/log/main.go/tabd-1.json", `{"changes":[`+changeJSON("UNDO_REDO", 0, 0, 1)+`]}`),
	)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	res, err := r.Lookup(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, SourceLogFiles, res.From)
}

func TestResolve_UnknownHashIsNotFound(t *testing.T) {
	f := newFakeFetcher()
	setCompare(f, compareFile{Filename: "a.go"})

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), provenance.Hash("missing.go"))
	assert.ErrorIs(t, err, provenance.ErrNotFound)
}

func TestResolve_CompareFailureIsRetryable(t *testing.T) {
	f := newFakeFetcher()

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), provenance.Hash("a.go"))
	require.Error(t, err)
	assert.True(t, provenance.IsRequestFailed(err))
	assert.True(t, provenance.IsRetryable(err))

	// Failures are not memoized; the next call asks again.
	_, _ = r.Resolve(context.Background(), provenance.Hash("a.go"))
	assert.Equal(t, 2, f.count("/compare/"))
}

func TestResolve_MalformedFragment(t *testing.T) {
	f := newFakeFetcher()
	path := "main.go"
	setCompare(f,
		compareFile{Filename: path, Status: "modified"},
		addFragment(f, ".tabd/log/main.go/tabd-1.json", `not json`),
	)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), provenance.Hash(path))
	assert.ErrorIs(t, err, provenance.ErrMalformedData)
}

func TestResolve_CachesCompareAndLogs(t *testing.T) {
	f := newFakeFetcher()
	setCompare(f,
		compareFile{Filename: "a.go", Status: "modified"},
		compareFile{Filename: "b.go", Status: "modified"},
		addFragment(f, ".tabd/log/a.go/tabd-1.json", `{"changes":[`+changeJSON("USER_EDIT", 0, 0, 1)+`]}`),
		addFragment(f, ".tabd/log/b.go/tabd-1.json", `{"changes":[`+changeJSON("USER_EDIT", 0, 0, 1)+`]}`),
	)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(ctx, provenance.Hash("a.go"))
		require.NoError(t, err)
	}
	_, err := r.Resolve(ctx, provenance.Hash("b.go"))
	require.NoError(t, err)

	assert.Equal(t, 1, f.count("/compare/"))
	assert.Equal(t, 2, f.count("/git/ref/notes/"))
	assert.Equal(t, 2, f.count("tabd-1.json?ref=head"))
}

func TestResolve_HashIsCaseInsensitive(t *testing.T) {
	f := newFakeFetcher()
	setCompare(f,
		compareFile{Filename: "a.go", Status: "modified"},
		addFragment(f, ".tabd/log/a.go/tabd-1.json", `{"changes":[`+changeJSON("USER_EDIT", 0, 0, 1)+`]}`),
	)

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	_, err := r.Resolve(context.Background(), strings.ToUpper(provenance.Hash("a.go")))
	require.NoError(t, err)
}

func TestResolve_ComparePagination(t *testing.T) {
	f := newFakeFetcher()
	page1 := make([]compareFile, 0, comparePerPage)
	for i := 0; i < comparePerPage; i++ {
		page1 = append(page1, compareFile{Filename: fmt.Sprintf("pkg/f%03d.go", i), Status: "modified"})
	}
	f.set(api+"/repos/o/r/compare/main...feat?per_page=100&page=1", map[string]interface{}{"files": page1})
	f.set(api+"/repos/o/r/compare/main...feat?per_page=100&page=2", map[string]interface{}{"files": []compareFile{
		{Filename: "z.go", Status: "modified"},
		addFragment(f, ".tabd/log/z.go/tabd-1.json", `{"changes":[`+changeJSON("USER_EDIT", 0, 0, 1)+`]}`),
	}})

	r := New(f, identity("main", "feat"), WithAPIURL(api))
	res, err := r.Lookup(context.Background(), provenance.Hash("z.go"))
	require.NoError(t, err)
	assert.Equal(t, "z.go", res.Path)
	assert.Equal(t, 2, f.count("/compare/"))
}

func TestNotesRef(t *testing.T) {
	assert.Equal(t, "notes/tabd__feature/x__abc", NotesRef("feature/x", "abc"))
}
