// Package catalog holds the static registry of permission codes.
//
// Every permission the application knows about is registered here once at
// process start. Services reference permissions through Code values that have
// been validated against the catalog; free-form permission strings only exist
// at the I/O boundary.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tessera-pm/tessera/internal/shared"
)

// Code identifies a permission in module.action form.
type Code string

// String returns the raw code.
func (c Code) String() string { return string(c) }

// ParseCode validates the module.action shape of a raw permission string.
func ParseCode(raw string) (Code, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	module, action, ok := strings.Cut(raw, ".")
	if !ok || module == "" || action == "" {
		return "", fmt.Errorf("catalog: malformed permission code %q: %w", raw, shared.ErrUnknownPermission)
	}
	return Code(raw), nil
}

// Permission is an atomic capability registered in the catalog.
type Permission struct {
	Code   Code
	Module string
	Action string
}

// Catalog is a read-only permission registry. It is populated once during
// startup and never mutated afterwards, so lookups are safe for concurrent use.
type Catalog struct {
	byCode map[Code]Permission
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{byCode: make(map[Code]Permission)}
}

// Register adds a permission code to the catalog.
func (c *Catalog) Register(raw string) error {
	code, err := ParseCode(raw)
	if err != nil {
		return err
	}
	if _, exists := c.byCode[code]; exists {
		return fmt.Errorf("catalog: %s: %w", code, shared.ErrDuplicatePermission)
	}
	module, action, _ := strings.Cut(string(code), ".")
	c.byCode[code] = Permission{Code: code, Module: module, Action: action}
	return nil
}

// Lookup resolves a code to its registered permission.
func (c *Catalog) Lookup(code Code) (Permission, error) {
	perm, ok := c.byCode[code]
	if !ok {
		return Permission{}, fmt.Errorf("catalog: %s: %w", code, shared.ErrUnknownPermission)
	}
	return perm, nil
}

// All returns every registered permission ordered by code.
func (c *Catalog) All() []Permission {
	perms := make([]Permission, 0, len(c.byCode))
	for _, perm := range c.byCode {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Code < perms[j].Code })
	return perms
}
