// Package config loads vecthornctl's configuration: one block per §4
// index component plus the ambient persistence, storage, and logging
// settings, following a layered precedence of hardcoded defaults, a
// user-global file, a per-directory project file, and environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vecthorn/vecthorn/internal/hnsw"
	"github.com/vecthorn/vecthorn/internal/ivf"
	"github.com/vecthorn/vecthorn/internal/logging"
	"github.com/vecthorn/vecthorn/internal/persistence"
)

// Config is the complete vecthorn configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	HNSW        HNSWConfig        `yaml:"hnsw" json:"hnsw"`
	IVF         IVFConfig         `yaml:"ivf" json:"ivf"`
	Hybrid      HybridConfig      `yaml:"hybrid" json:"hybrid"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// HNSWConfig configures the recent-tier graph index (§4.4).
type HNSWConfig struct {
	M              int     `yaml:"m" json:"m"`
	M0             int     `yaml:"m0" json:"m0"`
	EfConstruction int     `yaml:"ef_construction" json:"ef_construction"`
	Seed           *uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// ToIndex converts to the hnsw package's own Config type.
func (c HNSWConfig) ToIndex() hnsw.Config {
	return hnsw.Config{M: c.M, M0: c.M0, EfConstruction: c.EfConstruction, Seed: c.Seed}
}

// IVFConfig configures the historical-tier partition index (§4.5).
type IVFConfig struct {
	NClusters     int     `yaml:"n_clusters" json:"n_clusters"`
	NProbe        int     `yaml:"n_probe" json:"n_probe"`
	TrainSize     int     `yaml:"train_size" json:"train_size"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"`
	Seed          *uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// ToIndex converts to the ivf package's own Config type.
func (c IVFConfig) ToIndex() ivf.Config {
	return ivf.Config{
		NClusters:     c.NClusters,
		NProbe:        c.NProbe,
		TrainSize:     c.TrainSize,
		MaxIterations: c.MaxIterations,
		Seed:          c.Seed,
	}
}

// HybridConfig configures the tier that fuses HNSW and IVF (§4.7).
// RecentThreshold is stored as a Go duration string (e.g. "168h") so it
// round-trips cleanly through YAML; ParsedRecentThreshold parses it.
type HybridConfig struct {
	RecentThreshold    string `yaml:"recent_threshold" json:"recent_threshold"`
	MigrationBatchSize int    `yaml:"migration_batch_size" json:"migration_batch_size"`
	AutoMigrate        bool   `yaml:"auto_migrate" json:"auto_migrate"`
}

// ParsedRecentThreshold parses RecentThreshold as a time.Duration.
func (c HybridConfig) ParsedRecentThreshold() (time.Duration, error) {
	return time.ParseDuration(c.RecentThreshold)
}

// PersistenceConfig configures where and how index snapshots are
// written (§4.8, §6).
type PersistenceConfig struct {
	Root      string `yaml:"root" json:"root"`
	ChunkSize int    `yaml:"chunk_size" json:"chunk_size"`
	Compress  bool   `yaml:"compress" json:"compress"`
}

// ToOptions converts to the persistence package's own Options type.
func (c PersistenceConfig) ToOptions() persistence.Options {
	return persistence.Options{ChunkSize: c.ChunkSize, Compress: c.Compress}
}

// StorageConfig selects the blob-store backend consumed by the chunk
// loader and the persister (§6). Kind "fs" is the local filesystem
// reference driver; "memory" is the in-process driver used by tests
// and ephemeral runs.
type StorageConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	Dir  string `yaml:"dir" json:"dir"`
}

// LoggingConfig mirrors the logging package's own Config so it can be
// expressed in the same YAML file.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	MaxSizeMB     int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// ToLogging converts to the logging package's own Config type.
func (c LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:         c.Level,
		FilePath:      c.FilePath,
		MaxSizeMB:     c.MaxSizeMB,
		MaxFiles:      c.MaxFiles,
		WriteToStderr: c.WriteToStderr,
	}
}

// NewConfig returns a Config with every default from §4's component
// defaults, a week-long recency window, and a filesystem store rooted
// at ./vecthorn-data.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		HNSW: HNSWConfig{
			M:              16,
			M0:             32,
			EfConstruction: 200,
		},
		IVF: IVFConfig{
			NClusters:     256,
			NProbe:        16,
			TrainSize:     10000,
			MaxIterations: 25,
		},
		Hybrid: HybridConfig{
			RecentThreshold:    "168h", // 7 days
			MigrationBatchSize: 100,
			AutoMigrate:        false,
		},
		Persistence: PersistenceConfig{
			Root:      "index",
			ChunkSize: persistence.DefaultChunkSize,
			Compress:  false,
		},
		Storage: StorageConfig{
			Kind: "fs",
			Dir:  "vecthorn-data",
		},
		Logging: LoggingConfig{
			Level:         "info",
			FilePath:      logging.DefaultLogPath(),
			MaxSizeMB:     10,
			MaxFiles:      5,
			WriteToStderr: true,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/vecthorn/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/vecthorn/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vecthorn", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vecthorn", "config.yaml")
	}
	return filepath.Join(home, ".config", "vecthorn", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if present.
// A missing file is not an error.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration for dir, applying configuration in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/vecthorn/config.yaml)
//  3. Project config (.vecthorn.yaml in dir)
//  4. Environment variables (VECTHORN_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .vecthorn.yaml or
// .vecthorn.yml in dir. Neither existing is not an error.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".vecthorn.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".vecthorn.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.HNSW.M != 0 {
		c.HNSW.M = other.HNSW.M
	}
	if other.HNSW.M0 != 0 {
		c.HNSW.M0 = other.HNSW.M0
	}
	if other.HNSW.EfConstruction != 0 {
		c.HNSW.EfConstruction = other.HNSW.EfConstruction
	}
	if other.HNSW.Seed != nil {
		c.HNSW.Seed = other.HNSW.Seed
	}

	if other.IVF.NClusters != 0 {
		c.IVF.NClusters = other.IVF.NClusters
	}
	if other.IVF.NProbe != 0 {
		c.IVF.NProbe = other.IVF.NProbe
	}
	if other.IVF.TrainSize != 0 {
		c.IVF.TrainSize = other.IVF.TrainSize
	}
	if other.IVF.MaxIterations != 0 {
		c.IVF.MaxIterations = other.IVF.MaxIterations
	}
	if other.IVF.Seed != nil {
		c.IVF.Seed = other.IVF.Seed
	}

	if other.Hybrid.RecentThreshold != "" {
		c.Hybrid.RecentThreshold = other.Hybrid.RecentThreshold
	}
	if other.Hybrid.MigrationBatchSize != 0 {
		c.Hybrid.MigrationBatchSize = other.Hybrid.MigrationBatchSize
	}
	c.Hybrid.AutoMigrate = c.Hybrid.AutoMigrate || other.Hybrid.AutoMigrate

	if other.Persistence.Root != "" {
		c.Persistence.Root = other.Persistence.Root
	}
	if other.Persistence.ChunkSize != 0 {
		c.Persistence.ChunkSize = other.Persistence.ChunkSize
	}
	c.Persistence.Compress = c.Persistence.Compress || other.Persistence.Compress

	if other.Storage.Kind != "" {
		c.Storage.Kind = other.Storage.Kind
	}
	if other.Storage.Dir != "" {
		c.Storage.Dir = other.Storage.Dir
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
	c.Logging.WriteToStderr = c.Logging.WriteToStderr || other.Logging.WriteToStderr
}

// applyEnvOverrides applies VECTHORN_* environment variables, which
// take precedence over both defaults and file-based configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VECTHORN_HNSW_M"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HNSW.M = n
		}
	}
	if v := os.Getenv("VECTHORN_HNSW_M0"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HNSW.M0 = n
		}
	}
	if v := os.Getenv("VECTHORN_HNSW_EF_CONSTRUCTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HNSW.EfConstruction = n
		}
	}
	if v := os.Getenv("VECTHORN_IVF_N_CLUSTERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IVF.NClusters = n
		}
	}
	if v := os.Getenv("VECTHORN_IVF_N_PROBE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IVF.NProbe = n
		}
	}
	if v := os.Getenv("VECTHORN_HYBRID_RECENT_THRESHOLD"); v != "" {
		c.Hybrid.RecentThreshold = v
	}
	if v := os.Getenv("VECTHORN_HYBRID_AUTO_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Hybrid.AutoMigrate = b
		}
	}
	if v := os.Getenv("VECTHORN_STORAGE_KIND"); v != "" {
		c.Storage.Kind = v
	}
	if v := os.Getenv("VECTHORN_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("VECTHORN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
var validStorageKinds = map[string]bool{"fs": true, "memory": true}

// Validate checks that the configuration is internally consistent,
// returning the first violation found.
func (c *Config) Validate() error {
	if c.HNSW.M <= 0 {
		return fmt.Errorf("hnsw.m must be positive, got %d", c.HNSW.M)
	}
	if c.HNSW.M0 <= 0 {
		return fmt.Errorf("hnsw.m0 must be positive, got %d", c.HNSW.M0)
	}
	if c.HNSW.EfConstruction <= 0 {
		return fmt.Errorf("hnsw.ef_construction must be positive, got %d", c.HNSW.EfConstruction)
	}

	if c.IVF.NClusters <= 0 {
		return fmt.Errorf("ivf.n_clusters must be positive, got %d", c.IVF.NClusters)
	}
	if c.IVF.NProbe <= 0 {
		return fmt.Errorf("ivf.n_probe must be positive, got %d", c.IVF.NProbe)
	}
	if c.IVF.NProbe > c.IVF.NClusters {
		return fmt.Errorf("ivf.n_probe (%d) must not exceed ivf.n_clusters (%d)", c.IVF.NProbe, c.IVF.NClusters)
	}
	if c.IVF.TrainSize <= 0 {
		return fmt.Errorf("ivf.train_size must be positive, got %d", c.IVF.TrainSize)
	}
	if c.IVF.MaxIterations <= 0 {
		return fmt.Errorf("ivf.max_iterations must be positive, got %d", c.IVF.MaxIterations)
	}

	if _, err := c.Hybrid.ParsedRecentThreshold(); err != nil {
		return fmt.Errorf("hybrid.recent_threshold is not a valid duration: %w", err)
	}
	if c.Hybrid.MigrationBatchSize <= 0 {
		return fmt.Errorf("hybrid.migration_batch_size must be positive, got %d", c.Hybrid.MigrationBatchSize)
	}

	if c.Persistence.ChunkSize <= 0 {
		return fmt.Errorf("persistence.chunk_size must be positive, got %d", c.Persistence.ChunkSize)
	}

	if !validStorageKinds[strings.ToLower(c.Storage.Kind)] {
		return fmt.Errorf("storage.kind must be one of fs, memory; got %q", c.Storage.Kind)
	}
	if c.Storage.Kind == "fs" && c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required when storage.kind is fs")
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to path in YAML form.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
