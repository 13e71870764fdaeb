package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage/dbconfig"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sqliteBatchSize is the number of rows inserted with a single statement.
const sqliteBatchSize = 256

// sqliteNode is a row of the trie table, a plain hash -> encoded node
// mapping.
type sqliteNode struct {
	Key  []byte `gorm:"column:key;primaryKey"`
	Data []byte `gorm:"column:data"`
}

// TableName implements gorm's tabler interface.
func (sqliteNode) TableName() string {
	return "trie"
}

// SQLiteStore is a Store backed by a single SQLite table.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) SQLite database at the given path.
func NewSQLiteStore(cfg dbconfig.SQLiteOptions) (*SQLiteStore, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("empty SQLite file path")
	}
	// Directory is not needed for in-memory databases.
	if !strings.Contains(cfg.FilePath, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), os.ModePerm); err != nil {
			return nil, fmt.Errorf("could not create dir for SQLite: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.FilePath), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite instance: %w", err)
	}
	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if err := db.AutoMigrate(&sqliteNode{}); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to create trie table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements the Store interface.
func (s *SQLiteStore) Get(key []byte) ([]byte, error) {
	var row sqliteNode
	err := s.db.Where("`key` = ?", key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return row.Data, nil
}

// Put implements the Store interface.
func (s *SQLiteStore) Put(key, value []byte) error {
	return upsertNodes(s.db, []sqliteNode{{Key: key, Data: value}})
}

// Delete implements the Store interface.
func (s *SQLiteStore) Delete(key []byte) error {
	return s.db.Where("`key` = ?", key).Delete(&sqliteNode{}).Error
}

// PutChangeSet implements the Store interface, the whole set is applied in a
// single transaction.
func (s *SQLiteStore) PutChangeSet(puts map[string][]byte) error {
	var (
		rows []sqliteNode
		dels [][]byte
	)
	for k, v := range puts {
		if v != nil {
			rows = append(rows, sqliteNode{Key: []byte(k), Data: v})
		} else {
			dels = append(dels, []byte(k))
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertNodes(tx, rows); err != nil {
			return err
		}
		for _, k := range dels {
			if err := tx.Where("`key` = ?", k).Delete(&sqliteNode{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertNodes(db *gorm.DB, rows []sqliteNode) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, sqliteBatchSize).Error
}

// Seek implements the Store interface. Matching rows are read before f is
// called, the only connection is not held by the iteration then.
func (s *SQLiteStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	start, limit := seekBounds(rng)
	q := s.db.Where("`key` >= ?", start)
	if limit != nil {
		q = q.Where("`key` < ?", limit)
	}
	var nodes []sqliteNode
	if err := q.Order("`key`").Find(&nodes).Error; err != nil {
		return
	}
	for _, n := range nodes {
		if !f(n.Key, n.Data) {
			return
		}
	}
}

// Close implements the Store interface.
func (s *SQLiteStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
