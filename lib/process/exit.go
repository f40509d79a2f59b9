// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal prints "roomgpt: err" to stderr and exits 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "roomgpt: %v\n", err)
	os.Exit(1)
}
