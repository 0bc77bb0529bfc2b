// Package config decodes the engine's TOML configuration file,
// grounded on internal/parser/toml/parser.go's schemaFile/Decoder
// pattern (BurntSushi/toml, a typed top-level document struct,
// validation after decode) but retargeted from a user-authored schema
// document to the engine's own startup settings: data directory,
// buffer pool sizing, replacement policy, and default output format.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"reldb/internal/storage"
)

// file is the top-level TOML document shape, e.g.:
//
//	[engine]
//	data_dir = "./data"
//	buffer_pool_capacity = 64
//	replacement_policy = "lru"
//	optimize = true
//
//	[output]
//	format = "table"
type file struct {
	Engine engineSection `toml:"engine"`
	Output outputSection `toml:"output"`
}

type engineSection struct {
	DataDir            string `toml:"data_dir"`
	BufferPoolCapacity int    `toml:"buffer_pool_capacity"`
	ReplacementPolicy  string `toml:"replacement_policy"`
	Optimize           *bool  `toml:"optimize"`
}

type outputSection struct {
	Format string `toml:"format"`
}

// Config is the validated, defaulted configuration the CLI and
// internal/engine consume.
type Config struct {
	DataDir            string
	BufferPoolCapacity int
	ReplacementPolicy  storage.ReplacementPolicy
	Optimize           bool
	OutputFormat       string
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		DataDir:            "./data",
		BufferPoolCapacity: 64,
		ReplacementPolicy:  storage.LRU,
		Optimize:           true,
		OutputFormat:       "table",
	}
}

// Load reads and decodes the TOML config file at path, filling in
// Default() for anything the file leaves unset. A missing path is not
// an error: Load returns Default() unchanged, mirroring
// storage.LoadCatalog's "absent file means fresh state" convention.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return decode(f, cfg)
}

func decode(r io.Reader, cfg Config) (Config, error) {
	var doc file
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return cfg, fmt.Errorf("config: decode error: %w", err)
	}

	if doc.Engine.DataDir != "" {
		cfg.DataDir = doc.Engine.DataDir
	}
	if doc.Engine.BufferPoolCapacity > 0 {
		cfg.BufferPoolCapacity = doc.Engine.BufferPoolCapacity
	}
	if doc.Engine.ReplacementPolicy != "" {
		cfg.ReplacementPolicy = storage.ParsePolicy(doc.Engine.ReplacementPolicy)
	}
	if doc.Engine.Optimize != nil {
		cfg.Optimize = *doc.Engine.Optimize
	}
	if doc.Output.Format != "" {
		cfg.OutputFormat = doc.Output.Format
	}
	return cfg, nil
}
