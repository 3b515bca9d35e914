package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), "args=%v output=%s", args, buf.String())
	return buf.String()
}

func writeTrainingData(t *testing.T, dir string, n, dim int) string {
	t.Helper()
	rows := make([][]float32, n)
	for i := range rows {
		row := make([]float32, dim)
		for d := range row {
			row[d] = float32(i%7) + float32(d)*0.01
		}
		rows[i] = row
	}
	data, err := json.Marshal(rows)
	require.NoError(t, err)

	path := filepath.Join(dir, "train.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// TestCLI_InitInsertSearchLifecycle drives the CLI through its full
// lifecycle against a filesystem-backed data directory, the way a
// shell session would: each subcommand is its own process round, so
// every step must load and persist the snapshot independently.
func TestCLI_InitInsertSearchLifecycle(t *testing.T) {
	dataDir := t.TempDir()
	trainPath := writeTrainingData(t, dataDir, 40, 4)

	// Training rejects fewer rows than n_clusters, and the default (256)
	// exceeds the 40 rows above, so the data dir carries a small IVF config.
	configYAML := "ivf:\n  n_clusters: 4\n  n_probe: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ".vecthorn.yaml"), []byte(configYAML), 0o644))

	out := run(t, "--data-dir", dataDir, "init", "--training-data", trainPath)
	assert.Contains(t, out, "trained")

	out = run(t, "--data-dir", dataDir, "insert",
		"--id", "vec-1",
		"--vector", "[1,2,3,4]",
		"--metadata", `{"kind":"alpha"}`,
	)
	assert.Contains(t, out, "inserted")
	assert.Contains(t, out, "recent=true")

	out = run(t, "--data-dir", dataDir, "insert",
		"--id", "vec-2",
		"--vector", "[1,2,3,5]",
		"--metadata", `{"kind":"beta"}`,
	)
	assert.Contains(t, out, "inserted")

	out = run(t, "--data-dir", dataDir, "search", "--query", "[1,2,3,4]", "--k", "2")
	assert.Contains(t, out, "tier=recent")

	out = run(t, "--data-dir", dataDir, "search", "--query", "[1,2,3,4]", "--k", "2",
		"--filter", `{"kind":"alpha"}`)
	assert.NotEmpty(t, out)

	out = run(t, "--data-dir", dataDir, "stats")
	assert.Contains(t, out, "recent:")
	assert.Contains(t, out, "total:")

	out = run(t, "--data-dir", dataDir, "migrate")
	assert.Contains(t, out, "migrated")

	out = run(t, "--data-dir", dataDir, "vacuum")
	assert.Contains(t, out, "vacuum complete")
}

func TestCLI_SearchWithoutInit_Errors(t *testing.T) {
	dataDir := t.TempDir()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--data-dir", dataDir, "search", "--query", "[1,2,3]"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vecthornctl init")
}
