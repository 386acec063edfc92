package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcube/gridcube/internal/job"
)

func runBuild(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewBuildCommand()

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	// Point at an empty config file so a developer's real one never
	// leaks into the test.
	configPath := filepath.Join(t.TempDir(), ".gridcube.yaml")
	require.NoError(t, os.WriteFile(configPath, nil, 0o644))

	cmd.SetArgs(append([]string{"--config", configPath}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func bboxArgs(t *testing.T, storeDir, logsDir string) []string {
	t.Helper()

	return []string{
		"--bbox", "0,0,1,1",
		"--start-date", "2023-01-01",
		"--end-date", "2023-02-01",
		"--resolution", "0.25",
		"--chunk-size", "2",
		"--store-path", storeDir,
		"--logs-dir", logsDir,
	}
}

func TestBuildCommand_BBoxRun(t *testing.T) {
	storeDir := t.TempDir()
	logsDir := t.TempDir()

	out, err := runBuild(t, bboxArgs(t, storeDir, logsDir)...)
	require.NoError(t, err)

	// 4 cells x 2 monthly windows.
	assert.Contains(t, out, "8 tasks: 8 succeeded, 0 failed")

	// The array store is initialized with the mosaic geometry.
	metaPath := filepath.Join(storeDir, "rgb_median", ".zarray")
	require.FileExists(t, metaPath)

	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)

	var meta struct {
		Shape  []int  `json:"shape"`
		Chunks []int  `json:"chunks"`
		Dtype  string `json:"dtype"`
		CRS    string `json:"crs"`
	}
	require.NoError(t, json.Unmarshal(data, &meta))

	assert.Equal(t, []int{2, 4, 4, 3}, meta.Shape)
	assert.Equal(t, []int{1, 2, 2, 3}, meta.Chunks)
	assert.Equal(t, "<f4", meta.Dtype)
	assert.Equal(t, "EPSG:4326", meta.CRS)

	// Every task wrote its chunk.
	entries, err := os.ReadDir(filepath.Join(storeDir, "rgb_median"))
	require.NoError(t, err)
	assert.Len(t, entries, 9, ".zarray plus 8 chunks")
}

func TestBuildCommand_WritesRunArtifacts(t *testing.T) {
	storeDir := t.TempDir()
	logsDir := t.TempDir()

	_, err := runBuild(t, bboxArgs(t, storeDir, logsDir)...)
	require.NoError(t, err)

	entries, err := os.ReadDir(logsDir)
	require.NoError(t, err)

	var csvPath, manifestPath string

	for _, entry := range entries {
		switch filepath.Ext(entry.Name()) {
		case ".csv":
			csvPath = filepath.Join(logsDir, entry.Name())
		case ".yaml":
			manifestPath = filepath.Join(logsDir, entry.Name())
		}
	}

	require.NotEmpty(t, csvPath)
	require.NotEmpty(t, manifestPath)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 9, "header plus 8 tasks")

	manifest, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "backend: local")
	assert.Contains(t, string(manifest), "tasks: 8")
	assert.Contains(t, string(manifest), "id_column: grid_id")
}

func TestBuildCommand_Limit(t *testing.T) {
	storeDir := t.TempDir()

	args := append(bboxArgs(t, storeDir, t.TempDir()), "--limit", "3")

	out, err := runBuild(t, args...)
	require.NoError(t, err)

	assert.Contains(t, out, "3 tasks: 3 succeeded")
}

func TestBuildCommand_OpenExisting(t *testing.T) {
	storeDir := t.TempDir()

	_, err := runBuild(t, bboxArgs(t, storeDir, t.TempDir())...)
	require.NoError(t, err)

	// A second pass against the initialized store skips initialization.
	args := append(bboxArgs(t, storeDir, t.TempDir()), "--initialize=false")

	out, err := runBuild(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "8 succeeded")
}

func TestBuildCommand_RequiresExactlyOneAOI(t *testing.T) {
	_, err := runBuild(t,
		"--start-date", "2023-01-01",
		"--end-date", "2023-02-01",
	)
	assert.ErrorIs(t, err, ErrAOIInput)

	_, err = runBuild(t,
		"--bbox", "0,0,1,1",
		"--geometry-file", "aoi.geojson",
		"--start-date", "2023-01-01",
		"--end-date", "2023-02-01",
	)
	assert.ErrorIs(t, err, ErrAOIInput)
}

func TestBuildCommand_BadDates(t *testing.T) {
	_, err := runBuild(t,
		"--bbox", "0,0,1,1",
		"--start-date", "January 1st",
		"--end-date", "2023-02-01",
	)
	assert.ErrorIs(t, err, ErrBadDate)
}

func TestBuildCommand_UnsupportedEPSG(t *testing.T) {
	args := append(bboxArgs(t, t.TempDir(), t.TempDir()), "--epsg", "3857")

	_, err := runBuild(t, args...)
	assert.ErrorIs(t, err, job.ErrConfigValidation)
}

func TestBuildCommand_UnknownBackend(t *testing.T) {
	args := append(bboxArgs(t, t.TempDir(), t.TempDir()), "--backend", "cluster")

	_, err := runBuild(t, args...)
	assert.Error(t, err)
}

func TestBuildCommand_RemoteRequiresEndpoint(t *testing.T) {
	args := append(bboxArgs(t, t.TempDir(), t.TempDir()), "--backend", "remote")

	_, err := runBuild(t, args...)
	assert.Error(t, err)
}
