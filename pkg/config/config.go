package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

// Version is the version of the application, set at build time.
var Version string

// DefaultConfigFile is the configuration file used if no other is given.
const DefaultConfigFile = "./config/ethtrie.yml"

// Default configuration values.
const (
	DefaultLogLevel      = "info"
	DefaultNodeCacheSize = 65536
)

// Config top level struct representing the config
// for the application.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// LoadFile loads config from the provided path. If relativePath is given and
// not empty, it's used as a prefix for all relative paths in the
// configuration file. Unknown fields are not allowed.
func LoadFile(configPath string, relativePath ...string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	config := Config{
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel: DefaultLogLevel,
			DBConfiguration: dbconfig.DBConfiguration{
				Type: dbconfig.InMemoryDB,
			},
			Trie: TrieConfiguration{
				NodeCacheSize: DefaultNodeCacheSize,
			},
		},
	}
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if len(relativePath) == 1 && relativePath[0] != "" {
		updateRelativePaths(relativePath[0], &config)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// updateRelativePaths updates relative paths in the config structure based on
// the provided relative path.
func updateRelativePaths(relativePath string, config *Config) {
	updatePath := func(path *string) {
		if *path != "" && !filepath.IsAbs(*path) && !strings.Contains(*path, ":memory:") {
			*path = filepath.Join(relativePath, *path)
		}
	}

	db := &config.ApplicationConfiguration.DBConfiguration
	updatePath(&config.ApplicationConfiguration.LogPath)
	updatePath(&db.LevelDBOptions.DataDirectoryPath)
	updatePath(&db.BoltDBOptions.FilePath)
	updatePath(&db.SQLiteOptions.FilePath)
	updatePath(&db.PebbleOptions.DataDirectoryPath)
	updatePath(&db.BadgerDBOptions.Dir)
}

// Validate checks Config for internal consistency.
func (c Config) Validate() error {
	return c.ApplicationConfiguration.Validate()
}
