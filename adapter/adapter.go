package adapter

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNotOpen        = errors.New("device not open")
	ErrAlreadyOpen    = errors.New("device already open")
	ErrDeviceNotFound = errors.New("printer device not found")
	ErrNotSupported   = errors.New("operation not supported on this platform")
)

// Adapter defines the interface for printer communication adapters
type Adapter interface {
	// Open opens the connection to the printer
	Open() error

	// Write sends data to the printer
	Write(data []byte) (int, error)

	// Read reads data from the printer
	Read(buf []byte) (int, error)

	// ReadTimeout reads whatever arrives within d. It returns 0 and a nil
	// error when the deadline passes without data.
	ReadTimeout(buf []byte, d time.Duration) (int, error)

	// Close closes the connection to the printer
	Close() error

	// IsOpen returns whether the connection is open
	IsOpen() bool
}

// Flusher is implemented by adapters that buffer writes
type Flusher interface {
	Flush() error
}
