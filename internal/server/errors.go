package server

import "errors"

var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrListenerFailed       = errors.New("failed to create listener")
	ErrTLSConfig            = errors.New("failed to build TLS configuration")
)
