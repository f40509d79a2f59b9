// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names a value compression algorithm.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Frame magic numbers as they appear on the wire (little endian).
var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// compressed wraps a Store, compressing values on the way in and
// decompressing them on the way out.
type compressed struct {
	inner    Store
	compress func([]byte) ([]byte, error)
	decoder  *zstd.Decoder
	encoder  *zstd.Encoder
}

// Compress wraps store so that written values are compressed with
// algorithm. Reads recognize zstd and lz4 frames by their magic number
// and pass anything else through, so compression can be switched on
// for a store that already holds plain values.
func Compress(store Store, algorithm Compression) (Store, error) {
	switch algorithm {
	case CompressionNone, "":
		return store, nil
	case CompressionZstd, CompressionLZ4:
	default:
		return nil, fmt.Errorf("kv: unknown compression %q", algorithm)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("kv: zstd decoder: %w", err)
	}
	wrapper := &compressed{inner: store, decoder: decoder, compress: compressLZ4}
	if algorithm == CompressionZstd {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			decoder.Close()
			return nil, fmt.Errorf("kv: zstd encoder: %w", err)
		}
		wrapper.encoder = encoder
		wrapper.compress = func(value []byte) ([]byte, error) {
			return encoder.EncodeAll(value, nil), nil
		}
	}
	return wrapper, nil
}

func compressLZ4(value []byte) ([]byte, error) {
	var output bytes.Buffer
	writer := lz4.NewWriter(&output)
	if _, err := writer.Write(value); err != nil {
		return nil, fmt.Errorf("kv: lz4: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("kv: lz4: %w", err)
	}
	return output.Bytes(), nil
}

func (store *compressed) decompress(value []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(value, zstdMagic):
		plain, err := store.decoder.DecodeAll(value, nil)
		if err != nil {
			return nil, fmt.Errorf("kv: zstd: %w", err)
		}
		return plain, nil
	case bytes.HasPrefix(value, lz4Magic):
		plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(value)))
		if err != nil {
			return nil, fmt.Errorf("kv: lz4: %w", err)
		}
		return plain, nil
	default:
		return value, nil
	}
}

func (store *compressed) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := store.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return store.decompress(value)
}

func (store *compressed) Put(ctx context.Context, key string, value []byte) error {
	packed, err := store.compress(value)
	if err != nil {
		return err
	}
	return store.inner.Put(ctx, key, packed)
}

func (store *compressed) Delete(ctx context.Context, key string) error {
	return store.inner.Delete(ctx, key)
}

func (store *compressed) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return store.inner.Update(ctx, key, func(current []byte, found bool) ([]byte, error) {
		if found {
			plain, err := store.decompress(current)
			if err != nil {
				return nil, err
			}
			current = plain
		}
		next, err := fn(current, found)
		if err != nil || next == nil {
			return next, err
		}
		return store.compress(next)
	})
}

func (store *compressed) Close() error {
	store.decoder.Close()
	if store.encoder != nil {
		store.encoder.Close()
	}
	return store.inner.Close()
}
