package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"mpgserve/db"
	"mpgserve/ml"
)

var diagnosticEnv = []string{"PORT", "APP_ENV", "MODEL_PATH", "LOG_LEVEL"}

// logStartupDiagnostics records where the process runs and what it can see
// next to the model artifact. Everything here is debug level.
func logStartupDiagnostics(log *zap.Logger, modelPath string) {
	if !log.Core().Enabled(zap.DebugLevel) {
		return
	}

	if wd, err := os.Getwd(); err == nil {
		log.Debug("working directory", zap.String("path", wd))
	}

	dir := filepath.Dir(modelPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug("model directory unreadable", zap.String("dir", dir), zap.Error(err))
	} else {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		log.Debug("model directory", zap.String("dir", dir), zap.Strings("files", names))
	}

	for _, key := range diagnosticEnv {
		if v, ok := os.LookupEnv(key); ok {
			log.Debug("environment", zap.String("key", key), zap.String("value", v))
		}
	}
}

// isRegistry reports whether path names a SQLite model registry rather than
// an artifact file.
func isRegistry(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// loadModel fills store from an artifact file or, for a .db path, from the
// newest registry row called name.
func loadModel(store *ml.ModelStore, path, name string) (ml.ModelParameters, error) {
	if !isRegistry(path) {
		return store.Load(path)
	}

	// OpenRegistry would create a missing database; refuse instead.
	if _, err := os.Stat(path); err != nil {
		return ml.ModelParameters{}, &ml.ModelLoadError{Source: path, Reason: "open registry", Err: err}
	}
	registry, err := db.OpenRegistry(path)
	if err != nil {
		return ml.ModelParameters{}, &ml.ModelLoadError{Source: path, Reason: "open registry", Err: err}
	}
	defer registry.Close()

	if name == "" {
		name = db.DefaultModelName
	}
	return store.LoadFrom(registry.Source(name))
}
