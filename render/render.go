// Package render turns prediction outcomes into HTML pages and fragments.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var embedded embed.FS

const templatePattern = "*.html"

// PageData is shared by the index and about pages.
type PageData struct {
	Title       string
	Lang        string
	ModelLoaded bool
	Intercept   float64
	Coefficient float64
	MaxWeight   int
}

// ResultView is the success fragment of the form.
type ResultView struct {
	Weight       float64
	PredictedMPG float64
	Label        string
	Color        string
	Intercept    float64
	Coefficient  float64
}

// ErrorView is the failure fragment of the form.
type ErrorView struct {
	Error string
}

type Options struct {
	// Dir loads templates from disk instead of the embedded set.
	Dir string
	// CacheSize bounds the fragment cache; 0 disables it.
	CacheSize int
}

// Renderer executes the current template set. Templates can be swapped at
// runtime by Reload; callers always see a complete set.
type Renderer struct {
	log     *zap.Logger
	dir     string
	current atomic.Pointer[template.Template]
	cache   *lru.Cache[string, []byte]
}

func New(opts Options, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{log: log, dir: opts.Dir}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []byte](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) source() fs.FS {
	if r.dir != "" {
		return os.DirFS(r.dir)
	}
	sub, _ := fs.Sub(embedded, "templates")
	return sub
}

// Reload parses the template set again and drops cached fragments. On a
// parse error the previous set stays active.
func (r *Renderer) Reload() error {
	tmpl, err := template.ParseFS(r.source(), templatePattern)
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	for _, name := range []string{"index", "about", "result", "error"} {
		if tmpl.Lookup(name) == nil {
			return fmt.Errorf("parse templates: %q not defined", name)
		}
	}
	r.current.Store(tmpl)
	if r.cache != nil {
		r.cache.Purge()
	}
	return nil
}

// Page writes a full page ("index" or "about").
func (r *Renderer) Page(w io.Writer, name string, data PageData) error {
	return r.current.Load().ExecuteTemplate(w, name, data)
}

// Result renders the success fragment. Identical keys yield identical bytes
// so the output is cached under key; an empty key bypasses the cache.
func (r *Renderer) Result(key string, view ResultView) ([]byte, error) {
	if r.cache != nil && key != "" {
		if out, ok := r.cache.Get(key); ok {
			return out, nil
		}
	}
	out, err := r.execute("result", view)
	if err != nil {
		return nil, err
	}
	if r.cache != nil && key != "" {
		r.cache.Add(key, out)
	}
	return out, nil
}

// Error renders the failure fragment.
func (r *Renderer) Error(view ErrorView) ([]byte, error) {
	return r.execute("error", view)
}

// CachedFragments reports how many fragments are cached.
func (r *Renderer) CachedFragments() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

func (r *Renderer) execute(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.current.Load().ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Watch reloads templates whenever a file in the template directory
// changes, until ctx is done. With embedded templates it returns at once.
func (r *Renderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}
	r.log.Info("watching templates", zap.String("dir", r.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.log.Warn("template reload failed, keeping previous set",
					zap.String("file", event.Name), zap.Error(err))
				continue
			}
			r.log.Info("templates reloaded", zap.String("file", event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				_ = r.Reload()
				continue
			}
			r.log.Warn("template watcher error", zap.Error(err))
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if ok, _ := filepath.Match(templatePattern, filepath.Base(event.Name)); !ok {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
