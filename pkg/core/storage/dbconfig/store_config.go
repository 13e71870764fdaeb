/*
Package dbconfig is a micropackage that contains storage DB configuration options.
*/
package dbconfig

// Supported DB types.
const (
	InMemoryDB = "inmemory"
	LevelDB    = "leveldb"
	BoltDB     = "boltdb"
	SQLiteDB   = "sqlite"
	PebbleDB   = "pebble"
	BadgerDB   = "badgerdb"
	RedisDB    = "redis"
)

type (
	// DBConfiguration describes configuration for DB. Supported types:
	// [LevelDB], [BoltDB], [SQLiteDB], [PebbleDB], [BadgerDB], [RedisDB] or
	// [InMemoryDB] (not recommended for production usage).
	DBConfiguration struct {
		Type string `yaml:"Type"`
		// Compress enables LZ4 compression of stored values.
		Compress        bool            `yaml:"Compress"`
		LevelDBOptions  LevelDBOptions  `yaml:"LevelDBOptions"`
		BoltDBOptions   BoltDBOptions   `yaml:"BoltDBOptions"`
		SQLiteOptions   SQLiteOptions   `yaml:"SQLiteOptions"`
		PebbleOptions   PebbleOptions   `yaml:"PebbleOptions"`
		BadgerDBOptions BadgerDBOptions `yaml:"BadgerDBOptions"`
		RedisOptions    RedisOptions    `yaml:"RedisOptions"`
	}
	// LevelDBOptions configuration for LevelDB.
	LevelDBOptions struct {
		DataDirectoryPath string `yaml:"DataDirectoryPath"`
		ReadOnly          bool   `yaml:"ReadOnly"`
	}
	// BoltDBOptions configuration for BoltDB.
	BoltDBOptions struct {
		FilePath string `yaml:"FilePath"`
		ReadOnly bool   `yaml:"ReadOnly"`
	}
	// SQLiteOptions configuration for SQLite.
	SQLiteOptions struct {
		FilePath string `yaml:"FilePath"`
	}
	// PebbleOptions configuration for Pebble.
	PebbleOptions struct {
		DataDirectoryPath string `yaml:"DataDirectoryPath"`
		ReadOnly          bool   `yaml:"ReadOnly"`
	}
	// BadgerDBOptions configuration for BadgerDB.
	BadgerDBOptions struct {
		Dir      string `yaml:"Dir"`
		InMemory bool   `yaml:"InMemory"`
	}
	// RedisOptions configuration for Redis.
	RedisOptions struct {
		Addr     string `yaml:"Addr"`
		Password string `yaml:"Password"`
		DB       int    `yaml:"DB"`
	}
)
