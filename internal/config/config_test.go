package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Default configuration tests
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)

	assert.Equal(t, 16, cfg.HNSW.M)
	assert.Equal(t, 32, cfg.HNSW.M0)
	assert.Equal(t, 200, cfg.HNSW.EfConstruction)
	assert.Nil(t, cfg.HNSW.Seed)

	assert.Equal(t, 256, cfg.IVF.NClusters)
	assert.Equal(t, 16, cfg.IVF.NProbe)
	assert.Equal(t, 10000, cfg.IVF.TrainSize)
	assert.Equal(t, 25, cfg.IVF.MaxIterations)

	assert.Equal(t, "168h", cfg.Hybrid.RecentThreshold)
	assert.Equal(t, 100, cfg.Hybrid.MigrationBatchSize)
	assert.False(t, cfg.Hybrid.AutoMigrate)

	assert.Equal(t, "index", cfg.Persistence.Root)
	assert.Greater(t, cfg.Persistence.ChunkSize, 0)
	assert.False(t, cfg.Persistence.Compress)

	assert.Equal(t, "fs", cfg.Storage.Kind)
	assert.NotEmpty(t, cfg.Storage.Dir)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.WriteToStderr)
}

func TestHybridConfig_ParsedRecentThreshold(t *testing.T) {
	cfg := NewConfig()
	d, err := cfg.Hybrid.ParsedRecentThreshold()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)
}

func TestNewConfig_ValidatesClean(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Conversion to sub-package config types
// =============================================================================

func TestHNSWConfig_ToIndex(t *testing.T) {
	cfg := NewConfig()
	idx := cfg.HNSW.ToIndex()
	assert.Equal(t, cfg.HNSW.M, idx.M)
	assert.Equal(t, cfg.HNSW.M0, idx.M0)
	assert.Equal(t, cfg.HNSW.EfConstruction, idx.EfConstruction)
}

func TestIVFConfig_ToIndex(t *testing.T) {
	cfg := NewConfig()
	idx := cfg.IVF.ToIndex()
	assert.Equal(t, cfg.IVF.NClusters, idx.NClusters)
	assert.Equal(t, cfg.IVF.NProbe, idx.NProbe)
}

func TestPersistenceConfig_ToOptions(t *testing.T) {
	cfg := NewConfig()
	cfg.Persistence.Compress = true
	opts := cfg.Persistence.ToOptions()
	assert.Equal(t, cfg.Persistence.ChunkSize, opts.ChunkSize)
	assert.True(t, opts.Compress)
}

func TestLoggingConfig_ToLogging(t *testing.T) {
	cfg := NewConfig()
	lc := cfg.Logging.ToLogging()
	assert.Equal(t, cfg.Logging.Level, lc.Level)
	assert.Equal(t, cfg.Logging.FilePath, lc.FilePath)
}

// =============================================================================
// File loading tests
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.HNSW.M)
	assert.Equal(t, 256, cfg.IVF.NClusters)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
hnsw:
  m: 32
  m0: 64
  ef_construction: 400
ivf:
  n_clusters: 64
  n_probe: 8
`
	err := os.WriteFile(filepath.Join(tmpDir, ".vecthorn.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.HNSW.M)
	assert.Equal(t, 64, cfg.HNSW.M0)
	assert.Equal(t, 400, cfg.HNSW.EfConstruction)
	assert.Equal(t, 64, cfg.IVF.NClusters)
	assert.Equal(t, 8, cfg.IVF.NProbe)
}

func TestLoad_YmlExtension_Supported(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, ".vecthorn.yml"), []byte("hnsw:\n  m: 24\n"), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.HNSW.M)
}

func TestLoad_YamlTakesPrecedenceOverYml(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".vecthorn.yaml"), []byte("hnsw:\n  m: 10\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".vecthorn.yml"), []byte("hnsw:\n  m: 99\n"), 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.HNSW.M)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, ".vecthorn.yaml"), []byte("hnsw: [invalid"), 0o644)
	require.NoError(t, err)

	_, err = Load(tmpDir)
	assert.Error(t, err)
}

func TestLoad_InvalidConfig_FailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, ".vecthorn.yaml"), []byte("ivf:\n  n_probe: 1000\n  n_clusters: 16\n"), 0o644)
	require.NoError(t, err)

	_, err = Load(tmpDir)
	assert.Error(t, err)
}

// =============================================================================
// Environment override tests
// =============================================================================

func TestApplyEnvOverrides_HNSWAndIVF(t *testing.T) {
	t.Setenv("VECTHORN_HNSW_M", "8")
	t.Setenv("VECTHORN_IVF_N_CLUSTERS", "32")
	t.Setenv("VECTHORN_HYBRID_AUTO_MIGRATE", "true")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 8, cfg.HNSW.M)
	assert.Equal(t, 32, cfg.IVF.NClusters)
	assert.True(t, cfg.Hybrid.AutoMigrate)
}

func TestApplyEnvOverrides_InvalidIntIgnored(t *testing.T) {
	t.Setenv("VECTHORN_HNSW_M", "not-a-number")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 16, cfg.HNSW.M)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".vecthorn.yaml"), []byte("hnsw:\n  m: 20\n"), 0o644))
	t.Setenv("VECTHORN_HNSW_M", "40")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.HNSW.M)
}

// =============================================================================
// Validate tests
// =============================================================================

func TestValidate_RejectsNonPositiveHNSWFields(t *testing.T) {
	cfg := NewConfig()
	cfg.HNSW.M = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNProbeAboveNClusters(t *testing.T) {
	cfg := NewConfig()
	cfg.IVF.NProbe = cfg.IVF.NClusters + 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadDuration(t *testing.T) {
	cfg := NewConfig()
	cfg.Hybrid.RecentThreshold = "not-a-duration"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownStorageKind(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage.Kind = "s3"
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsMemoryStorageWithoutDir(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage.Kind = "memory"
	cfg.Storage.Dir = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

// =============================================================================
// User config path tests
// =============================================================================

func TestGetUserConfigPath_DefaultsToXDGConfigHome(t *testing.T) {
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	expected := filepath.Join(customConfig, "vecthorn", "config.yaml")
	assert.Equal(t, expected, GetUserConfigPath())
}

func TestGetUserConfigPath_FallsBackToHomeConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expected := filepath.Join(home, ".config", "vecthorn", "config.yaml")
	assert.Equal(t, expected, GetUserConfigPath())
}

func TestUserConfigExists_FalseWhenAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, UserConfigExists())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".vecthorn.yaml")

	cfg := NewConfig()
	cfg.HNSW.M = 48
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(tmpDir) // reads the file just written, confirming it is well-formed YAML
	require.NoError(t, err)
	require.NotNil(t, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "m: 48")
}
