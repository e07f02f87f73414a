package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// LinearModelType is the only model_type an artifact may declare.
const LinearModelType = "linear_regression"

// artifact is the on-disk shape shared by the JSON, YAML and TOML formats.
// coef mirrors a fitted regressor's coefficient vector; a scalar
// "coefficient" key is accepted as well.
type artifact struct {
	ModelType    string    `json:"model_type" yaml:"model_type" toml:"model_type"`
	Intercept    *float64  `json:"intercept" yaml:"intercept" toml:"intercept"`
	Coef         []float64 `json:"coef" yaml:"coef" toml:"coef"`
	Coefficient  *float64  `json:"coefficient" yaml:"coefficient" toml:"coefficient"`
	FeatureNames []string  `json:"feature_names" yaml:"feature_names" toml:"feature_names"`
}

type decodeFunc func(data []byte, a *artifact) error

type fileSource struct {
	path   string
	decode decodeFunc
}

// FileSource picks a decoder for path by its extension.
func FileSource(path string) (ParameterSource, error) {
	var decode decodeFunc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decode = func(data []byte, a *artifact) error { return json.Unmarshal(data, a) }
	case ".yaml", ".yml":
		decode = func(data []byte, a *artifact) error { return yaml.Unmarshal(data, a) }
	case ".toml":
		decode = func(data []byte, a *artifact) error {
			_, err := toml.Decode(string(data), a)
			return err
		}
	default:
		return nil, loadError(path, "unsupported artifact format", nil)
	}
	return &fileSource{path: path, decode: decode}, nil
}

func (f *fileSource) Name() string {
	return f.path
}

func (f *fileSource) Parameters() (ModelParameters, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return ModelParameters{}, loadError(f.path, "read artifact", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return ModelParameters{}, loadError(f.path, "artifact is empty", nil)
	}

	var a artifact
	if err := f.decode(data, &a); err != nil {
		return ModelParameters{}, loadError(f.path, "decode artifact", err)
	}
	params, err := a.parameters()
	if err != nil {
		return ModelParameters{}, loadError(f.path, "not a two-parameter linear model", err)
	}
	return params, nil
}

func (a *artifact) parameters() (ModelParameters, error) {
	if a.ModelType != "" && a.ModelType != LinearModelType {
		return ModelParameters{}, fmt.Errorf("model_type %q", a.ModelType)
	}
	if len(a.FeatureNames) > 0 && (len(a.FeatureNames) != 1 || a.FeatureNames[0] != "weight") {
		return ModelParameters{}, fmt.Errorf("features %v, want [weight]", a.FeatureNames)
	}
	if a.Intercept == nil {
		return ModelParameters{}, errors.New("missing intercept")
	}

	var coef float64
	switch {
	case a.Coef != nil && a.Coefficient != nil:
		return ModelParameters{}, errors.New("both coef and coefficient set")
	case a.Coef != nil:
		if len(a.Coef) != 1 {
			return ModelParameters{}, fmt.Errorf("expected 1 coefficient, got %d", len(a.Coef))
		}
		coef = a.Coef[0]
	case a.Coefficient != nil:
		coef = *a.Coefficient
	default:
		return ModelParameters{}, errors.New("missing coefficient")
	}

	return ModelParameters{Intercept: *a.Intercept, Coefficient: coef}, nil
}

func validateParameters(source string, p ModelParameters) error {
	if math.IsNaN(p.Intercept) || math.IsInf(p.Intercept, 0) {
		return loadError(source, "intercept is not finite", nil)
	}
	if math.IsNaN(p.Coefficient) || math.IsInf(p.Coefficient, 0) {
		return loadError(source, "coefficient is not finite", nil)
	}
	return nil
}
