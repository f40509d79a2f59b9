// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/roomgpt/lib/codec"
)

// Codec converts documents to and from stored values. Encoding the
// same value twice yields the same bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Extension names the file suffix used by the File driver.
	Extension() string
}

var (
	// JSON writes tab-indented documents with a trailing newline, so
	// files can be read and edited by hand.
	JSON Codec = jsonCodec{}

	// CBOR writes Core Deterministic CBOR.
	CBOR Codec = cborCodec{}
)

// CodecByName returns "json" or "cbor".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("kv: unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Extension() string                  { return ".json" }

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error)      { return codec.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return codec.Unmarshal(data, v) }
func (cborCodec) Extension() string                  { return ".cbor" }
