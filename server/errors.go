package server

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a server that was started
	// before. A Server is single use.
	ErrAlreadyStarted = errors.New("server already started")

	// ErrInvalidArgument is returned by Start for a bad port or connection
	// limit
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrReusePortUnsupported is returned by Start when SO_REUSEPORT was
	// requested on a platform without it
	ErrReusePortUnsupported = errors.New("SO_REUSEPORT not supported on this platform")

	// errStopping ends an idle worker that was about to block on a read
	// after Stop.
	errStopping = errors.New("server stopping")
)
