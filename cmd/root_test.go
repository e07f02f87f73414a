package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mpgserve/cmd"
	"mpgserve/ml"
)

const artifactJSON = `{
  "model_type": "linear_regression",
  "feature_names": ["weight"],
  "intercept": 46.3,
  "coef": [-0.0077]
}`

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model_mpg_weight.json")
	require.NoError(t, os.WriteFile(path, []byte(artifactJSON), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPredictCommand(t *testing.T) {
	artifact := writeArtifact(t)

	out, err := run(t, "predict", "3000", "--model", artifact)
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 23.2, res["predicted_mpg"])
	assert.Equal(t, "medium", res["interpretation"])
	assert.Equal(t, "Medium fuel efficiency", res["label"])
}

func TestPredictCommandRaw(t *testing.T) {
	artifact := writeArtifact(t)

	out, err := run(t, "predict", "12000", "--raw", "--model", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, `"predicted_mpg": -46.1`)
	assert.NotContains(t, out, "interpretation")

	_, err = run(t, "predict", "12000", "--model", artifact)
	require.Error(t, err)
	assert.Equal(t, ml.KindOutOfRange, ml.KindOf(err))
}

func TestPredictCommandMissingModel(t *testing.T) {
	_, err := run(t, "predict", "3000", "--model", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestModelInspect(t *testing.T) {
	artifact := writeArtifact(t)

	out, err := run(t, "model", "inspect", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, "intercept:   46.3000")
	assert.Contains(t, out, "coefficient: -0.0077")
}

func TestModelImportThenServeFromRegistry(t *testing.T) {
	artifact := writeArtifact(t)
	dbPath := filepath.Join(t.TempDir(), "models.db")

	out, err := run(t, "model", "import", artifact, "--db", dbPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "imported "), out)

	out, err = run(t, "model", "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "mpg_weight")

	out, err = run(t, "predict", "5000", "--model", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"predicted_mpg": 7.8`)
}

func TestModelInspectMissingRegistry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	_, err := run(t, "model", "inspect", dbPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, dbPath)
}
