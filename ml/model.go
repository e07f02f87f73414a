package ml

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ModelParameters are the two fitted scalars of the weight → MPG model.
type ModelParameters struct {
	Intercept   float64 `json:"intercept" yaml:"intercept"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
}

// Evaluate returns intercept + coefficient*weight without rounding.
func (p ModelParameters) Evaluate(weight float64) float64 {
	return p.Intercept + p.Coefficient*weight
}

// ParameterSource yields model parameters from some persisted artifact.
type ParameterSource interface {
	Name() string
	Parameters() (ModelParameters, error)
}

type snapshot struct {
	params ModelParameters
	source string
}

// ModelStore holds the parameters loaded once at startup. The zero value is
// an unloaded store; reads after a successful load take no locks.
type ModelStore struct {
	loadMu  sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewModelStore returns an empty store.
func NewModelStore() *ModelStore {
	return &ModelStore{}
}

// NewLoadedStore returns a store already holding params. Used by callers that
// obtained parameters some other way, and by tests.
func NewLoadedStore(params ModelParameters, source string) *ModelStore {
	s := &ModelStore{}
	s.current.Store(&snapshot{params: params, source: source})
	return s
}

// Load reads the artifact at path, choosing the decoder by file extension.
func (s *ModelStore) Load(path string) (ModelParameters, error) {
	src, err := FileSource(path)
	if err != nil {
		return ModelParameters{}, err
	}
	return s.LoadFrom(src)
}

// LoadFrom publishes the parameters of src. A store accepts one successful
// load; a failed load leaves it unloaded.
func (s *ModelStore) LoadFrom(src ParameterSource) (ModelParameters, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.current.Load() != nil {
		return ModelParameters{}, loadError(src.Name(), "store already holds a model", ErrAlreadyLoaded)
	}

	params, err := src.Parameters()
	if err != nil {
		var lerr *ModelLoadError
		if errors.As(err, &lerr) {
			return ModelParameters{}, lerr
		}
		return ModelParameters{}, loadError(src.Name(), "read parameters", err)
	}
	if err := validateParameters(src.Name(), params); err != nil {
		return ModelParameters{}, err
	}

	s.current.Store(&snapshot{params: params, source: src.Name()})
	return params, nil
}

// IsLoaded reports whether parameters are available.
func (s *ModelStore) IsLoaded() bool {
	return s.current.Load() != nil
}

// Get returns the loaded parameters or ErrModelUnavailable.
func (s *ModelStore) Get() (ModelParameters, error) {
	snap := s.current.Load()
	if snap == nil {
		return ModelParameters{}, ErrModelUnavailable
	}
	return snap.params, nil
}

// Source names where the loaded parameters came from, or "" when unloaded.
func (s *ModelStore) Source() string {
	snap := s.current.Load()
	if snap == nil {
		return ""
	}
	return snap.source
}
