package source

import "errors"

var ErrUnknownScope = errors.New("unknown scope")
