// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
)

// PrivilegeGate decides who may select the premium tier. The role
// list lives in a JSONC file that operators edit while the bot runs;
// it is read again on every check.
type PrivilegeGate struct {
	path     string
	defaults []string
	logger   *slog.Logger
}

type privilegeDocument struct {
	Roles []string `json:"roles"`
}

// NewPrivilegeGate returns a gate reading path. When the file does not
// exist it is created holding defaultRoles.
func NewPrivilegeGate(path string, defaultRoles []string, logger *slog.Logger) *PrivilegeGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrivilegeGate{path: path, defaults: slices.Clone(defaultRoles), logger: logger}
}

// Path returns the role file location.
func (gate *PrivilegeGate) Path() string {
	return gate.path
}

// IsPrivileged reports whether any of roles is listed. Any failure to
// read the list denies.
func (gate *PrivilegeGate) IsPrivileged(roles []string) bool {
	allowed, err := gate.Roles()
	if err != nil {
		gate.logger.Error("reading privileged roles failed, denying", "path", gate.path, "error", err)
		return false
	}
	for _, role := range roles {
		if slices.Contains(allowed, role) {
			return true
		}
	}
	return false
}

// Roles returns the listed roles, creating the file from the defaults
// if it is missing.
func (gate *PrivilegeGate) Roles() ([]string, error) {
	data, err := os.ReadFile(gate.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := gate.writeDefaults(); err != nil {
			return nil, err
		}
		return slices.Clone(gate.defaults), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: reading %s: %w", gate.path, err)
	}
	var document privilegeDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, fmt.Errorf("state: parsing %s: %w", gate.path, err)
	}
	return document.Roles, nil
}

func (gate *PrivilegeGate) writeDefaults() error {
	if err := os.MkdirAll(filepath.Dir(gate.path), 0o755); err != nil {
		return fmt.Errorf("state: creating %s: %w", gate.path, err)
	}
	roles, err := json.MarshalIndent(privilegeDocument{Roles: gate.defaults}, "", "\t")
	if err != nil {
		return fmt.Errorf("state: encoding default roles: %w", err)
	}
	var content strings.Builder
	content.WriteString("// Roles allowed to select the premium model.\n")
	content.WriteString("// Matrix power levels map to \"admin\" (100), \"moderator\" (50)\n")
	content.WriteString("// and \"power:<level>\". Changes apply on the next check.\n")
	content.Write(roles)
	content.WriteString("\n")
	if err := os.WriteFile(gate.path, []byte(content.String()), 0o644); err != nil {
		return fmt.Errorf("state: creating %s: %w", gate.path, err)
	}
	gate.logger.Info("created privileged role file", "path", gate.path, "roles", gate.defaults)
	return nil
}
