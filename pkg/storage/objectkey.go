package storage

import "fmt"

// Scope is the ownership tier a file belongs to. It drives both access
// partitioning and object-key namespacing.
type Scope string

const (
	ScopeSystem    Scope = "SYSTEM"
	ScopeDomain    Scope = "DOMAIN"
	ScopeWorkspace Scope = "WORKSPACE"
	ScopeProject   Scope = "PROJECT"
	ScopeUser      Scope = "USER"
)

// scopeSegments partitions the key namespace: objects from different scopes
// can never collide even when file ids coincide.
var scopeSegments = map[Scope]string{
	ScopeSystem:    "public",
	ScopeDomain:    "domain",
	ScopeWorkspace: "workspace",
	ScopeProject:   "project",
	ScopeUser:      "user",
}

// Valid reports whether s is one of the defined scopes.
func (s Scope) Valid() bool {
	_, ok := scopeSegments[s]
	return ok
}

// ObjectKey derives the canonical backend path for (scope, fileID). The
// mapping is deterministic and injective over (scope, fileID) pairs and stable
// for the lifetime of the record. An unrecognized scope is a configuration
// error, not a runtime condition.
func ObjectKey(scope Scope, fileID string) (string, error) {
	segment, ok := scopeSegments[scope]
	if !ok {
		return "", fmt.Errorf("%w (resource_group = %s)", ErrUnsupportedScope, scope)
	}
	return fmt.Sprintf("files/%s/%s", segment, fileID), nil
}
