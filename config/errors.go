package config

import "errors"

var ErrKeyNotFound = errors.New("config: key not found")
