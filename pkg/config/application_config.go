package config

import (
	"fmt"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage/dbconfig"
	"go.uber.org/zap/zapcore"
)

// ApplicationConfiguration config specific to the application.
type ApplicationConfiguration struct {
	LogLevel        string                   `yaml:"LogLevel"`
	LogPath         string                   `yaml:"LogPath"`
	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`
	Trie            TrieConfiguration        `yaml:"Trie"`
}

// TrieConfiguration contains trie engine settings.
type TrieConfiguration struct {
	// NodeCacheSize is the number of decoded nodes kept in memory, 0 makes
	// the cache unbounded.
	NodeCacheSize int `yaml:"NodeCacheSize"`
	// MaxValueLength limits the size of stored values, 0 means no limit.
	MaxValueLength int `yaml:"MaxValueLength"`
}

// Validate checks ApplicationConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (a *ApplicationConfiguration) Validate() error {
	if a.LogLevel != "" {
		if _, err := zapcore.ParseLevel(a.LogLevel); err != nil {
			return fmt.Errorf("invalid LogLevel: %w", err)
		}
	}
	switch a.DBConfiguration.Type {
	case dbconfig.InMemoryDB, dbconfig.LevelDB, dbconfig.BoltDB, dbconfig.SQLiteDB,
		dbconfig.PebbleDB, dbconfig.BadgerDB, dbconfig.RedisDB:
	default:
		return fmt.Errorf("unknown DB type: %q", a.DBConfiguration.Type)
	}
	if a.Trie.NodeCacheSize < 0 {
		return fmt.Errorf("negative NodeCacheSize: %d", a.Trie.NodeCacheSize)
	}
	if a.Trie.MaxValueLength < 0 {
		return fmt.Errorf("negative MaxValueLength: %d", a.Trie.MaxValueLength)
	}
	return nil
}
