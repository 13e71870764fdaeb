package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage/dbconfig"
	"github.com/redis/go-redis/v9"
)

// redisScanCount is a hint for the number of keys returned per SCAN call.
const redisScanCount = 1024

// RedisStore holds the client and maybe later some more metadata.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a new initialized, ready to use RedisStore object.
func NewRedisStore(cfg dbconfig.RedisOptions) (*RedisStore, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := c.Ping(context.Background()).Result(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: c}, nil
}

// Get implements the Store interface.
func (s *RedisStore) Get(k []byte) ([]byte, error) {
	val, err := s.client.Get(context.Background(), string(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = ErrKeyNotFound
		}
		return nil, err
	}
	return val, nil
}

// Put implements the Store interface.
func (s *RedisStore) Put(k, v []byte) error {
	return s.client.Set(context.Background(), string(k), v, 0).Err()
}

// Delete implements the Store interface.
func (s *RedisStore) Delete(k []byte) error {
	return s.client.Del(context.Background(), string(k)).Err()
}

// PutChangeSet implements the Store interface. Changes are sent in a single
// MULTI/EXEC block.
func (s *RedisStore) PutChangeSet(puts map[string][]byte) error {
	if len(puts) == 0 {
		return nil
	}
	ctx := context.Background()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range puts {
			if v != nil {
				pipe.Set(ctx, k, v, 0)
			} else {
				pipe.Del(ctx, k)
			}
		}
		return nil
	})
	return err
}

// Seek implements the Store interface. Redis doesn't keep keys ordered, so
// all matching keys are fetched and sorted before iterating.
func (s *RedisStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	ctx := context.Background()
	start, limit := seekBounds(rng)

	var keys []string
	iter := s.client.Scan(ctx, 0, "*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		k := []byte(iter.Val())
		if bytes.Compare(k, start) < 0 || (limit != nil && bytes.Compare(k, limit) >= 0) {
			continue
		}
		keys = append(keys, iter.Val())
	}
	if iter.Err() != nil || len(keys) == 0 {
		return
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, err := s.client.Get(ctx, k).Bytes()
		if err != nil {
			// Deleted concurrently.
			continue
		}
		if !f([]byte(k), v) {
			return
		}
	}
}

// Close implements the Store interface.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
