package di

import "errors"

var (
	// ErrDisposed is returned by every operation of a closed container.
	ErrDisposed = errors.New("di: container disposed")
	// ErrNotImplemented is returned when resolving a root that failed planning.
	ErrNotImplemented = errors.New("di: root not implemented")
	// ErrUnknownRoot is returned for a type the container does not expose.
	ErrUnknownRoot = errors.New("di: unknown root")
	// ErrMissingBinding is returned when a plan calls something with no Go binding.
	ErrMissingBinding = errors.New("di: missing binding")
	// ErrArgumentCount is returned when a delegate is called with the wrong arity.
	ErrArgumentCount = errors.New("di: wrong number of arguments")
)
