package cache

import "errors"

var (
	// ErrNotSupportedWhileCached is returned by config mutators invoked before
	// the real config has loaded. Retrying once it is available succeeds.
	ErrNotSupportedWhileCached = errors.New("cache: not supported while the currency config is loading")

	// ErrMethodNotAvailable is returned when the loaded real wallet does not
	// expose a requested other method.
	ErrMethodNotAvailable = errors.New("cache: method not available")
)
