package render

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEmbeddedPages(t *testing.T) {
	r, err := New(Options{}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, "index", PageData{Title: "MPG", Lang: "en", ModelLoaded: false, MaxWeight: 10000}))
	assert.Contains(t, buf.String(), `name="weight"`)
	assert.Contains(t, buf.String(), "model is not loaded")

	buf.Reset()
	require.NoError(t, r.Page(&buf, "about", PageData{Title: "About", ModelLoaded: true, Intercept: 46.3, Coefficient: -0.0077, MaxWeight: 10000}))
	assert.Contains(t, buf.String(), "46.3000")
	assert.Contains(t, buf.String(), "-0.0077")
}

func TestResultFragmentCache(t *testing.T) {
	r, err := New(Options{CacheSize: 2}, nil)
	require.NoError(t, err)

	view := ResultView{Weight: 3000, PredictedMPG: 23.2, Label: "Medium fuel efficiency", Color: "orange", Intercept: 46.3, Coefficient: -0.0077}
	out, err := r.Result("en|3000", view)
	require.NoError(t, err)
	assert.Contains(t, string(out), `class="orange"`)
	assert.Contains(t, string(out), "23.20")
	assert.Equal(t, 1, r.CachedFragments())

	again, err := r.Result("en|3000", ResultView{})
	require.NoError(t, err)
	assert.Equal(t, out, again)

	_, err = r.Result("", view)
	require.NoError(t, err)
	assert.Equal(t, 1, r.CachedFragments())

	for _, k := range []string{"a", "b", "c"} {
		_, err := r.Result(k, view)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, r.CachedFragments())
}

func TestErrorFragmentEscapes(t *testing.T) {
	r, err := New(Options{}, nil)
	require.NoError(t, err)

	out, err := r.Error(ErrorView{Error: "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
	assert.Contains(t, string(out), "&lt;script&gt;")
}

func copyTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := embedded.ReadDir("templates")
	require.NoError(t, err)
	for _, e := range entries {
		data, err := embedded.ReadFile("templates/" + e.Name())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), data, 0o644))
	}
	return dir
}

func TestReloadKeepsPreviousSetOnError(t *testing.T) {
	dir := copyTemplates(t)
	r, err := New(Options{Dir: dir, CacheSize: 4}, nil)
	require.NoError(t, err)

	_, err = r.Result("k", ResultView{Color: "green"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.html"), []byte(`{{define "result"}}{{.Nope`), 0o644))
	assert.Error(t, r.Reload())
	assert.Equal(t, 1, r.CachedFragments())

	out, err := r.Error(ErrorView{Error: "still works"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "still works")
}

func TestWatchReloadsChangedTemplates(t *testing.T) {
	dir := copyTemplates(t)
	r, err := New(Options{Dir: dir}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	updated := `{{define "error"}}<p class="oops">{{.Error}}</p>{{end}}` + "\n" +
		`{{define "result"}}<p>{{.PredictedMPG}}</p>{{end}}`
	require.Eventually(t, func() bool {
		// Rewrite until the watcher has registered and picked up a change.
		_ = os.WriteFile(filepath.Join(dir, "result.html"), []byte(updated), 0o644)
		out, err := r.Error(ErrorView{Error: "x"})
		return err == nil && strings.Contains(string(out), "oops")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchEmbeddedReturnsImmediately(t *testing.T) {
	r, err := New(Options{}, nil)
	require.NoError(t, err)
	assert.NoError(t, r.Watch(context.Background()))
}
