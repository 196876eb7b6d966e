package manifest

import "errors"

var (
	ErrInvalidManifest    = errors.New("invalid manifest")
	ErrUnsupportedVersion = errors.New("unsupported manifest apiVersion")
)
