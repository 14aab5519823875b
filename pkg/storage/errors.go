package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScope is returned when a resource group outside the
	// defined set reaches the key resolver.
	ErrUnsupportedScope = errors.New("not supported resource group")

	// ErrConnectorConfiguration is returned when a backend is constructed
	// from a configuration block missing a required field. Fatal at startup,
	// never retried.
	ErrConnectorConfiguration = errors.New("backend configuration error")

	// ErrUndefinedBackend is returned by the factory for an unknown backend
	// selector.
	ErrUndefinedBackend = errors.New("file backend not defined")

	// ErrObjectNotFound reports a confirmed absent object on download.
	ErrObjectNotFound = errors.New("object not found")
)

// ConfigError builds an ErrConnectorConfiguration naming the backend and the
// missing field.
func ConfigError(backend, field string) error {
	return fmt.Errorf("%w (backend = %s, field = %s)", ErrConnectorConfiguration, backend, field)
}
