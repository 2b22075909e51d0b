package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cropyield.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
forest:
  n_estimators: 10
  n_jobs: 2
synthetic:
  samples: 200
`), 0o600))
	return path
}

func TestGenerateTrainPredictRuns(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	data := filepath.Join(dir, "crops.csv")
	model := filepath.Join(dir, "model.gob")
	db := filepath.Join(dir, "runs.db")
	plot := filepath.Join(dir, "pred.png")

	_, stderr, err := run(t, "generate", "--n", "300", "--seed", "42", "--out", data)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote 300 records")

	out, stderr, err := run(t, "--config", cfg, "train", "--data", data, "--model", model, "--db", db, "--plot", plot, "--progress")
	require.NoError(t, err)
	assert.Contains(t, out, "240 train / 60 test")
	assert.Contains(t, out, "Feature importances")
	assert.Contains(t, stderr, "saved model")
	for _, path := range []string{model, plot, db} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	out, _, err = run(t, "predict", "--model", model,
		"--temperature", "28", "--precipitation", "1500", "--fertilizer", "180", "--soil", "Franco")
	require.NoError(t, err)
	v, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	require.NoError(t, err)
	assert.InDelta(t, 32.5, v, 5)

	input := filepath.Join(dir, "fields.csv")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join([]string{
		"temperature_mean,annual_precipitation,fertilizer_use,soil_type",
		"28,1500,180,Franco",
		"16,600,55,Turfoso",
		"bad,600,55,Arenoso",
		"28,1500,180,Franco",
	}, "\n")), 0o600))
	out, _, err = run(t, "predict", "--model", model, "--input", input)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, "the malformed row is rejected")
	assert.Equal(t, lines[0], lines[2])

	// train again from the stored records
	_, _, err = run(t, "--config", cfg, "train", "--db", db)
	require.NoError(t, err)

	out, _, err = run(t, "runs", "--db", db)
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, rows, 3, "header and two runs")
	assert.Contains(t, rows[0], "TRAINED AT")
}

func TestTrainSynthetic(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	out, _, err := run(t, "--config", cfg, "train", "--synthetic")
	require.NoError(t, err)
	assert.Contains(t, out, "160 train / 40 test")
	assert.Contains(t, out, "Prediction:")
}

func TestGenerateToStdout(t *testing.T) {
	out, _, err := run(t, "generate", "--n", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "temperature_mean,annual_precipitation,fertilizer_use,soil_type,yield", lines[0])
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "train")
	assert.Error(t, err, "a data source is required")

	_, _, err = run(t, "train", "--data", "x.csv", "--synthetic")
	assert.Error(t, err)

	_, _, err = run(t, "predict", "--soil", "Franco")
	assert.Error(t, err, "--model is required")

	_, _, err = run(t, "predict", "--model", filepath.Join(dir, "missing.gob"), "--soil", "Franco")
	assert.Error(t, err)

	_, _, err = run(t, "--config", filepath.Join(dir, "missing.yaml"), "runs")
	assert.Error(t, err)

	_, _, err = run(t, "train", "--db", filepath.Join(dir, "empty.db"))
	assert.Error(t, err, "an empty database cannot be trained on")

	out, _, err := run(t, "runs", "--db", filepath.Join(dir, "fresh.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "no training runs")
}
