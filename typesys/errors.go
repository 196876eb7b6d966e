package typesys

import "errors"

var (
	ErrEmptyTypeID   = errors.New("type declaration must have a non-empty id")
	ErrDuplicateType = errors.New("type already defined")
)
