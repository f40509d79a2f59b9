// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"context"
	"fmt"
	"log/slog"
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a store.
type Config struct {
	// Driver is memory, file, sqlite or redis.
	Driver string `yaml:"driver"`

	// Path is the root directory (file) or database file (sqlite).
	Path string `yaml:"path"`

	// URL is the redis:// server URL (redis).
	URL string `yaml:"url"`

	// Prefix is prepended to every Redis key.
	Prefix string `yaml:"prefix"`

	// Codec is json or cbor.
	Codec string `yaml:"codec"`

	// Compression is none, zstd or lz4.
	Compression Compression `yaml:"compression"`
}

// Open builds the configured store and its codec. The caller closes
// the store.
func Open(ctx context.Context, config Config, logger *slog.Logger) (Store, Codec, error) {
	valueCodec, err := CodecByName(config.Codec)
	if err != nil {
		return nil, nil, err
	}

	var store Store
	switch config.Driver {
	case DriverMemory:
		store = NewMemory()
	case DriverFile:
		store, err = NewFile(config.Path, valueCodec.Extension())
	case DriverSQLite:
		store, err = NewSQLite(config.Path, logger)
	case DriverRedis:
		store, err = NewRedis(ctx, config.URL, config.Prefix)
	default:
		return nil, nil, fmt.Errorf("kv: unknown driver %q", config.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	wrapped, err := Compress(store, config.Compression)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if logger != nil {
		logger.Info("state store opened",
			"driver", config.Driver,
			"codec", config.Codec,
			"compression", string(config.Compression),
		)
	}
	return wrapped, valueCodec, nil
}
