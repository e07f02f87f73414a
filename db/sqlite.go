package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"mpgserve/ml"
)

// DefaultModelName is the registry name of the weight → MPG model.
const DefaultModelName = "mpg_weight"

// ErrModelNotFound is returned when the registry has no row for a name.
var ErrModelNotFound = errors.New("model not found in registry")

// ModelRecord is one registered set of fitted parameters.
type ModelRecord struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	Parameters ml.ModelParameters `json:"parameters"`
	Source     string             `json:"source"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Registry stores pre-fitted linear models in SQLite.
type Registry struct {
	database *sql.DB
	path     string
}

// OpenRegistry opens (creating if needed) the SQLite registry at path.
func OpenRegistry(path string) (*Registry, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS linear_models (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        intercept REAL NOT NULL,
        coefficient REAL NOT NULL,
        source TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_linear_models_name ON linear_models(name, id);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("init registry %s: %w", path, err)
	}

	return &Registry{database: database, path: path}, nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.database.Close()
}

// Import registers params under name. The newest row for a name wins.
func (r *Registry) Import(name string, params ml.ModelParameters, source string) (int64, error) {
	if name == "" {
		return 0, errors.New("model name required")
	}
	res, err := r.database.Exec(`
        INSERT INTO linear_models (name, intercept, coefficient, source, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		name, params.Intercept, params.Coefficient, source, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Latest returns the most recently imported record for name.
func (r *Registry) Latest(name string) (*ModelRecord, error) {
	var rec ModelRecord
	err := r.database.QueryRow(`
        SELECT id, name, intercept, coefficient, source, created_at
        FROM linear_models
        WHERE name = ?
        ORDER BY id DESC
        LIMIT 1`, name).Scan(&rec.ID, &rec.Name, &rec.Parameters.Intercept, &rec.Parameters.Coefficient, &rec.Source, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every record, newest first.
func (r *Registry) List() ([]ModelRecord, error) {
	rows, err := r.database.Query(`
        SELECT id, name, intercept, coefficient, source, created_at
        FROM linear_models
        ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ModelRecord, 0)
	for rows.Next() {
		var rec ModelRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Parameters.Intercept, &rec.Parameters.Coefficient, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Source adapts the registry to ml.ParameterSource for one model name.
func (r *Registry) Source(name string) ml.ParameterSource {
	return &registrySource{registry: r, name: name}
}

type registrySource struct {
	registry *Registry
	name     string
}

func (s *registrySource) Name() string {
	return fmt.Sprintf("%s#%s", s.registry.path, s.name)
}

func (s *registrySource) Parameters() (ml.ModelParameters, error) {
	rec, err := s.registry.Latest(s.name)
	if err != nil {
		return ml.ModelParameters{}, err
	}
	return rec.Parameters, nil
}
