// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package access

import (
	"slices"
	"strings"

	"github.com/samber/oops"
)

// Permission is a capability granted to accounts through group membership.
// The set of permissions is closed; there is no hierarchy and no wildcard.
type Permission uint8

// Known permissions. The zero value is not a valid permission.
const (
	AddRole Permission = iota + 1
	RemoveRole
	AddPokedexToOtherProfiles
	RemovePokedexFromOtherProfiles
)

// permissionNames are the stored (snake_case) names, indexed by Permission.
var permissionNames = [...]string{
	AddRole:                        "add_role",
	RemoveRole:                     "remove_role",
	AddPokedexToOtherProfiles:      "add_pokedex_to_other_profiles",
	RemovePokedexFromOtherProfiles: "remove_pokedex_from_other_profiles",
}

// AllPermissions returns every known permission in declaration order.
func AllPermissions() []Permission {
	return []Permission{AddRole, RemoveRole, AddPokedexToOtherProfiles, RemovePokedexFromOtherProfiles}
}

// Valid reports whether p is one of the known permissions.
func (p Permission) Valid() bool {
	return p >= AddRole && int(p) < len(permissionNames)
}

// String returns the stored name of the permission.
func (p Permission) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return permissionNames[p]
}

// ParsePermission parses a stored permission name.
func ParsePermission(name string) (Permission, error) {
	for _, p := range AllPermissions() {
		if permissionNames[p] == name {
			return p, nil
		}
	}
	return 0, oops.Code("ACCESS_UNKNOWN_PERMISSION").
		With("permission", name).
		Errorf("unknown permission %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, oops.Code("ACCESS_UNKNOWN_PERMISSION").
			With("permission", uint8(p)).
			Errorf("cannot encode unknown permission")
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PermissionSet is a deduplicated set of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from perms, dropping duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Len returns the number of permissions in the set.
func (s PermissionSet) Len() int {
	return len(s)
}

// Sorted returns the permissions in declaration order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (s PermissionSet) String() string {
	names := make([]string, 0, len(s))
	for _, p := range s.Sorted() {
		names = append(names, p.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}
