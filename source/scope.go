package source

import (
	"fmt"
	"strings"
)

// Scope is the lifetime and sharing policy of a produced instance.
type Scope int

const (
	// InstancePerResolution creates at most one instance per top-level
	// resolution call, shared by every dependent within that call. It is the default.
	InstancePerResolution Scope = iota
	// InstancePerDependency creates a fresh instance at every use site.
	InstancePerDependency
	// SingleInstance creates at most one instance for the lifetime of the container.
	SingleInstance
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case InstancePerDependency:
		return "InstancePerDependency"
	case SingleInstance:
		return "SingleInstance"
	default:
		return "InstancePerResolution"
	}
}

// ParseScope parses a scope name. Short aliases are accepted and the empty
// string is InstancePerResolution.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "instanceperresolution", "resolution", "scoped":
		return InstancePerResolution, nil
	case "instanceperdependency", "dependency", "transient":
		return InstancePerDependency, nil
	case "singleinstance", "singleton", "single":
		return SingleInstance, nil
	}
	return InstancePerResolution, fmt.Errorf("%w: %q", ErrUnknownScope, s)
}
