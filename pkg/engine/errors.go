package engine

import "errors"

var (
	// ErrEngineClosed is returned when operations are performed on a closed engine
	ErrEngineClosed = errors.New("engine is closed")
	// ErrDirNotFound is returned by Open when the data directory does not exist
	ErrDirNotFound = errors.New("data directory not found")
)
