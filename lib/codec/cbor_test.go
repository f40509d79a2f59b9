// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type record struct {
	Model   string  `json:"model"`
	Credits float64 `json:"credits"`
}

func TestJSONTagsDriveFieldNames(t *testing.T) {
	t.Parallel()
	data, err := Marshal(record{Model: "basic", Credits: 0.05})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string]any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if generic["model"] != "basic" {
		t.Errorf("model = %v, want basic", generic["model"])
	}
	if generic["credits"] != 0.05 {
		t.Errorf("credits = %v, want 0.05", generic["credits"])
	}
}

func TestMarshalDeterministicMapOrder(t *testing.T) {
	t.Parallel()
	channels := map[string]string{
		"!b:example.org": "prompt b",
		"!a:example.org": "prompt a",
		"!c:example.org": "prompt c",
	}
	first, err := Marshal(channels)
	if err != nil {
		t.Fatal(err)
	}
	for range 20 {
		again, err := Marshal(channels)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("map encoding differs between calls")
		}
	}

	var decoded map[string]string
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 3 || decoded["!a:example.org"] != "prompt a" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	t.Parallel()
	data, err := Marshal(map[string]any{"model": "premium", "credits": -1, "extra": true})
	if err != nil {
		t.Fatal(err)
	}
	var decoded record
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Model != "premium" || decoded.Credits != -1 {
		t.Errorf("decoded = %+v", decoded)
	}
}
