// Package config loads the TOML configuration used by the server.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"attic/internal/classify"
	"attic/internal/compress"
)

// DefaultHistoryDB is the history database path used when the
// configuration does not name one.
const DefaultHistoryDB = "attic-history.db"

// Config is the full application configuration.
type Config struct {
	OutputDir string `toml:"output_dir"`
	APIBind   string `toml:"api_bind"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HistoryDB string `toml:"history_db"`

	Archive     ArchiveDefaults     `toml:"archive"`
	Compression CompressionDefaults `toml:"compression"`
}

// ArchiveDefaults seeds archive requests that omit settings.
type ArchiveDefaults struct {
	FolderName      string `toml:"folder_name"`
	SkipHiddenFiles bool   `toml:"skip_hidden_files"`
	SkipExtensions  string `toml:"skip_extensions"`
	SkipFolders     string `toml:"skip_folders"`
}

// CompressionDefaults seeds compression requests that omit settings.
type CompressionDefaults struct {
	Quality        int    `toml:"quality"`
	OutputFormat   string `toml:"output_format"`
	DeleteOriginal bool   `toml:"delete_original"`
	Recursive      bool   `toml:"recursive"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		OutputDir: "output",
		APIBind:   "127.0.0.1:8189",
		LogLevel:  "info",
		LogFormat: "text",
		HistoryDB: DefaultHistoryDB,
		Archive: ArchiveDefaults{
			FolderName:      "Archive",
			SkipHiddenFiles: true,
			SkipExtensions:  classify.DefaultSkipExtensions,
		},
		Compression: CompressionDefaults{
			Quality:      90,
			OutputFormat: "JPEG",
			Recursive:    true,
		},
	}
}

// Load reads path into a Config layered over the defaults. An empty
// path returns the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engines would refuse anyway,
// before anything starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("archive defaults: %w", err)
	}
	if c.Compression.Quality < 1 || c.Compression.Quality > 100 {
		return fmt.Errorf("compression quality %d out of range", c.Compression.Quality)
	}
	if _, err := compress.ParseFormat(c.Compression.OutputFormat); err != nil {
		return fmt.Errorf("compression defaults: %w", err)
	}
	return nil
}

// Rules builds the archive rule set from the configured defaults.
func (c *Config) Rules() classify.Rules {
	return classify.Rules{
		ArchiveFolderName: c.Archive.FolderName,
		SkipHiddenFiles:   c.Archive.SkipHiddenFiles,
		SkipExtensions:    classify.ParseList(c.Archive.SkipExtensions),
		SkipFolderNames:   classify.ParseFolderList(c.Archive.SkipFolders),
	}
}
