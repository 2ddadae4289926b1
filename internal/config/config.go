package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vjranagit/lkext/pkg/fitsreader"
	"github.com/vjranagit/lkext/pkg/lightcurve"
	"github.com/vjranagit/lkext/pkg/naming"
	"github.com/vjranagit/lkext/pkg/search"
	"github.com/vjranagit/lkext/pkg/storage"
)

// Config holds the application configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Reader  ReaderConfig  `yaml:"reader"`
	Server  ServerConfig  `yaml:"server"`
}

// StorageConfig holds directory cache configuration
type StorageConfig struct {
	Path             string `yaml:"path"`
	CompressionLevel int    `yaml:"compression_level"`
	KeepSnapshots    int    `yaml:"keep_snapshots"`
}

// SearchConfig holds search configuration
type SearchConfig struct {
	Roots          []string      `yaml:"roots"`
	SectorTree     bool          `yaml:"sector_tree"`
	UseCache       bool          `yaml:"use_cache"`
	MemoCapacity   int           `yaml:"memo_capacity"`
	MemoTTL        time.Duration `yaml:"memo_ttl"`
	AuthorPriority []string      `yaml:"author_priority"`
}

// ReaderConfig holds FITS reader configuration
type ReaderConfig struct {
	FluxColumn     string `yaml:"flux_column"`
	QualityBitmask int32  `yaml:"quality_bitmask"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr string        `yaml:"listen_addr"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	store := storage.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Path:             store.Path,
			CompressionLevel: store.CompressionLevel,
			KeepSnapshots:    store.KeepSnapshots,
		},
		Search: SearchConfig{
			UseCache:       true,
			MemoCapacity:   search.DefaultMemoCapacity,
			MemoTTL:        search.DefaultMemoTTL,
			AuthorPriority: slices.Clone(lightcurve.DefaultAuthorPriority),
		},
		Reader: ReaderConfig{
			FluxColumn: fitsreader.DefaultFluxColumn,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8765",
			Timeout:    30 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Path = getEnv("LKX_CACHE_DIR", c.Storage.Path)
	c.Storage.CompressionLevel = getEnvInt("LKX_COMPRESSION_LEVEL", c.Storage.CompressionLevel)
	c.Search.SectorTree = getEnvBool("LKX_SECTOR_TREE", c.Search.SectorTree)
	c.Server.ListenAddr = getEnv("LKX_LISTEN_ADDR", c.Server.ListenAddr)
	if roots := os.Getenv("LKX_ROOTS"); roots != "" {
		c.Search.Roots = filepath.SplitList(roots)
	}
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Path:             c.Storage.Path,
		CompressionLevel: c.Storage.CompressionLevel,
		KeepSnapshots:    c.Storage.KeepSnapshots,
	}
}

// ToSearchOptions converts to resolver options. dirs is attached only when
// the cache is enabled.
func (c *Config) ToSearchOptions(dirs *storage.DirectoryCache, logger *slog.Logger) []search.Option {
	opts := []search.Option{
		search.WithSectorTree(c.Search.SectorTree),
		search.WithMemo(c.Search.MemoCapacity, c.Search.MemoTTL),
		search.WithLogger(logger),
	}
	if c.Search.UseCache && dirs != nil {
		opts = append(opts, search.WithDirectoryCache(dirs))
	}
	return opts
}

// ToReaderOptions converts to FITS reader options
func (c *Config) ToReaderOptions() []fitsreader.Option {
	return []fitsreader.Option{
		fitsreader.WithFluxColumn(c.Reader.FluxColumn),
		fitsreader.WithQualityBitmask(c.Reader.QualityBitmask),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Storage.KeepSnapshots < 0 {
		return fmt.Errorf("keep snapshots must not be negative")
	}

	if c.Search.MemoCapacity < 1 {
		return fmt.Errorf("search memo capacity must be at least 1")
	}

	for _, root := range c.Search.Roots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("search roots must not be empty")
		}
	}

	for _, author := range c.Search.AuthorPriority {
		if !slices.Contains(naming.Authors, author) {
			return fmt.Errorf("unknown author %q in author priority", author)
		}
	}

	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
