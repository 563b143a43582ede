package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmunell/featurespace"
	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/testutil"
)

func writeFixture(t *testing.T) (dir, cfgPath, dataPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "featurespace.yaml")
	cfg := `
generators:
  - kind: NGram
    name: words
training:
  variant: plain
  expandEvery: 0
storage:
  kind: local
  root: ` + filepath.Join(dir, "models") + `
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	dataPath = filepath.Join(dir, "train.tsv")
	var buf bytes.Buffer
	require.NoError(t, data.WriteTSV(&buf, testutil.NewRNG(7).SeparableDataset(80, data.True, data.False)))
	require.NoError(t, os.WriteFile(dataPath, buf.Bytes(), 0o600))
	return dir, cfgPath, dataPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTrainPredictInspect(t *testing.T) {
	_, cfgPath, dataPath := writeFixture(t)

	out, err := run(t, "train", "-c", cfgPath, "-d", dataPath, "-n", "spam")
	require.NoError(t, err)
	var tr TrainResult
	require.NoError(t, json.Unmarshal([]byte(out), &tr))
	assert.Equal(t, "spam", tr.Name)
	assert.Equal(t, []string{"true", "false"}, tr.Labels)
	assert.Equal(t, 80, tr.Examples)
	assert.Positive(t, tr.Features)
	assert.GreaterOrEqual(t, tr.Accuracy, 0.95)

	out, err = run(t, "predict", "-c", cfgPath, "-d", dataPath, "-n", "spam")
	require.NoError(t, err)
	var pr PredictResult
	require.NoError(t, json.Unmarshal([]byte(out), &pr))
	assert.Len(t, pr.Predictions, 80)
	require.NotNil(t, pr.Accuracy)
	assert.InDelta(t, tr.Accuracy, *pr.Accuracy, 1e-12)

	out, err = run(t, "inspect", "spam", "-c", cfgPath, "--top", "3")
	require.NoError(t, err)
	var s featurespace.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.False(t, s.Multi)
	require.Len(t, s.Labels, 1)
	assert.LessOrEqual(t, len(s.Labels[0].Top), 3)

	out, err = run(t, "inspect", "spam", "-c", cfgPath, "--human")
	require.NoError(t, err)
	assert.Contains(t, out, "sections:")

	out, err = run(t, "list", "-c", cfgPath)
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"spam.fsd"}, names)
}

func TestErrors(t *testing.T) {
	dir, cfgPath, dataPath := writeFixture(t)

	_, err := run(t, "predict", "-c", cfgPath, "-d", dataPath, "-n", "missing")
	require.ErrorIs(t, err, featurespace.ErrNotFound)

	_, err = run(t, "train", "-c", filepath.Join(dir, "nope.yaml"), "-d", dataPath)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "train", "-c", cfgPath, "-d", dataPath, "--env-file", filepath.Join(dir, "missing.env"))
	require.Error(t, err)

	_, err = run(t, "train", "-c", cfgPath, "-d", dataPath, "--log-level", "loud")
	require.Error(t, err)

	_, err = run(t, "train", "-c", cfgPath)
	require.Error(t, err, "--data is required")
}

func TestEnvFile(t *testing.T) {
	dir, cfgPath, dataPath := writeFixture(t)
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("FEATURESPACE_TEST_TOKEN=abc\n"), 0o600))
	t.Setenv("FEATURESPACE_TEST_TOKEN", "")
	require.NoError(t, os.Unsetenv("FEATURESPACE_TEST_TOKEN"))

	_, err := run(t, "train", "-c", cfgPath, "-d", dataPath, "--env-file", env)
	require.NoError(t, err)
	assert.Equal(t, "abc", os.Getenv("FEATURESPACE_TEST_TOKEN"))
}

func TestRenderError(t *testing.T) {
	var buf bytes.Buffer
	renderError(&buf, errors.New("opening dataset: no such file\ncaused by: disk"))
	assert.Equal(t, "**err**: opening dataset: no such file\n**err**: caused by: disk\n", buf.String())
}
