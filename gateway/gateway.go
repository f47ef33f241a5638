// Package gateway owns the single device session used for printing.
package gateway

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/nixxel-company-limited/escpos-bt-server/adapter"
	"github.com/nixxel-company-limited/escpos-bt-server/store"
)

// Print failures. The error returned by Print wraps exactly one of these.
var (
	ErrNoPrinterSelected = errors.New("no printer selected")
	ErrDeviceNotFound    = adapter.ErrDeviceNotFound
	ErrConnectFailed     = errors.New("failed to connect to printer")
	ErrSendFailed        = errors.New("failed to send data")
)

// Resolver turns a stored address into a dialable device
type Resolver interface {
	Resolve(address string) (adapter.Device, error)
}

// Session is the part of adapter.Session the gateway drives
type Session interface {
	Connect() error
	Send(data []byte) error
	SendAndReceive(data []byte, timeout time.Duration) ([]byte, error)
	IsAlive() bool
	Close() error
}

// SessionFactory builds an unconnected session for a device
type SessionFactory func(device adapter.Device) Session

// Gateway serializes all access to the printer. It holds at most one
// session and replaces it only after closing the previous one.
type Gateway struct {
	store      store.AddressStore
	resolver   Resolver
	newSession SessionFactory
	session    Session
	mu         sync.Mutex
	logger     *log.Logger
}

// Option configures a Gateway
type Option func(*Gateway)

// WithLogger sets a custom logger
func WithLogger(logger *log.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithSessionFactory replaces how sessions are constructed
func WithSessionFactory(f SessionFactory) Option {
	return func(g *Gateway) {
		g.newSession = f
	}
}

// New creates a gateway reading the current printer from s
func New(s store.AddressStore, resolver Resolver, opts ...Option) *Gateway {
	g := &Gateway{
		store:    s,
		resolver: resolver,
		logger:   log.New(os.Stdout, "[GATEWAY] ", log.LstdFlags|log.Lmsgprefix),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.newSession == nil {
		logger := g.logger
		g.newSession = func(device adapter.Device) Session {
			return adapter.NewSessionWithLogger(device, logger)
		}
	}
	return g
}

// Print delivers data to the selected printer, reconnecting if the held
// session is gone. A send failure drops the session so the next call
// starts from a fresh connection.
func (g *Gateway) Print(data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	device, err := g.resolveLocked()
	if err != nil {
		g.logger.Printf("Error: %v", err)
		return err
	}

	if g.session == nil || !g.session.IsAlive() {
		g.dropSessionLocked()

		session := g.newSession(device)
		if err := session.Connect(); err != nil {
			session.Close()
			g.logger.Printf("Error: %v: %v", ErrConnectFailed, err)
			return fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
		g.session = session
	}

	if err := g.session.Send(data); err != nil {
		g.dropSessionLocked()
		g.logger.Printf("Error: %v: %v", ErrSendFailed, err)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	g.logger.Printf("Printed %d bytes on %s", len(data), device.Address)
	return nil
}

// QueryStatus sends command on a dedicated short-lived session and decodes
// the reply. A held print session is closed first and the next Print
// reconnects. A silent printer is reported as LevelUnsupported without an
// error; the call then takes the full timeout.
func (g *Gateway) QueryStatus(command []byte, timeout time.Duration) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	device, err := g.resolveLocked()
	if err != nil {
		return Status{Level: LevelUnsupported}, err
	}

	// The printer accepts one link at a time
	g.dropSessionLocked()

	session := g.newSession(device)
	defer session.Close()

	if err := session.Connect(); err != nil {
		g.logger.Printf("Error: status query: %v: %v", ErrConnectFailed, err)
		return Status{Level: LevelUnsupported}, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	response, err := session.SendAndReceive(command, timeout)
	if err != nil {
		g.logger.Printf("Status query failed: %v", err)
	}

	status := DecodeStatus(response)
	g.logger.Printf("Status of %s: %s (%s)", device.Address, status.Level, status.Hex())
	return status, nil
}

// Close drops the held session
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil {
		return nil
	}
	err := g.session.Close()
	g.session = nil
	return err
}

func (g *Gateway) resolveLocked() (adapter.Device, error) {
	address, ok := g.store.Get()
	if !ok {
		return adapter.Device{}, ErrNoPrinterSelected
	}

	device, err := g.resolver.Resolve(address)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return adapter.Device{}, err
		}
		return adapter.Device{}, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	return device, nil
}

func (g *Gateway) dropSessionLocked() {
	if g.session != nil {
		g.session.Close()
		g.session = nil
	}
}
