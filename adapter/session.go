package adapter

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// State is the lifecycle position of a Session
type State int

const (
	StateUnconnected State = iota
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrSessionClosed is returned by operations on a session that is not live
var ErrSessionClosed = errors.New("session closed")

const receiveChunk = 256

// Session owns one transport to one device. It moves from unconnected to
// live once and becomes closed on any I/O failure; closed is terminal.
type Session struct {
	device  Device
	adapter Adapter
	state   State
	mu      sync.Mutex
	logger  *log.Logger
}

// NewSession creates an unconnected session for device
func NewSession(device Device) *Session {
	return NewSessionWithLogger(device, log.New(os.Stdout, "[SESSION] ", log.LstdFlags|log.Lmsgprefix))
}

// NewSessionWithLogger creates an unconnected session with a custom logger
func NewSessionWithLogger(device Device, logger *log.Logger) *Session {
	return &Session{
		device: device,
		logger: logger,
	}
}

// Address returns the device address this session targets
func (s *Session) Address() string {
	return s.device.Address
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect makes the single connection attempt for this session
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnconnected {
		return fmt.Errorf("connect in state %s: %w", s.state, ErrSessionClosed)
	}

	s.logger.Printf("Connecting to %s (%s)", s.device.Address, s.device.Kind)
	a := s.device.NewAdapter()
	if err := a.Open(); err != nil {
		a.Close()
		s.state = StateClosed
		s.logger.Printf("Error: Connection to %s failed: %v", s.device.Address, err)
		return fmt.Errorf("connect %s: %w", s.device.Address, err)
	}

	s.adapter = a
	s.state = StateLive
	s.logger.Printf("Connected to %s", s.device.Address)
	return nil
}

// Send writes data and flushes it. Any failure closes the session.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(data); err != nil {
		s.logger.Printf("Error: Failed to send data: %v", err)
		return err
	}
	s.logger.Printf("Sent %d bytes to %s", len(data), s.device.Address)
	return nil
}

// SendAndReceive writes data then waits up to timeout for a reply. It
// returns as soon as any bytes arrive; an empty result means no reply.
func (s *Session) SendAndReceive(data []byte, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(data); err != nil {
		s.logger.Printf("Error: Failed to send/receive data: %v", err)
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, receiveChunk)
	var response []byte

	for len(response) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		n, err := s.adapter.ReadTimeout(buf, remaining)
		if n > 0 {
			response = append(response, buf[:n]...)
		}
		if err != nil {
			s.closeLocked()
			s.logger.Printf("Error: Failed to read response: %v", err)
			if len(response) > 0 {
				return response, nil
			}
			return nil, fmt.Errorf("read: %w", err)
		}
	}

	return response, nil
}

func (s *Session) writeLocked(data []byte) error {
	if s.state != StateLive {
		return ErrSessionClosed
	}

	if _, err := s.adapter.Write(data); err != nil {
		s.closeLocked()
		return fmt.Errorf("write: %w", err)
	}

	if f, ok := s.adapter.(Flusher); ok {
		if err := f.Flush(); err != nil {
			s.closeLocked()
			return fmt.Errorf("flush: %w", err)
		}
	}

	return nil
}

// IsAlive reports whether the session is live and its transport is open
func (s *Session) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateLive && s.adapter != nil && s.adapter.IsOpen()
}

// Close releases the transport. Safe to call in any state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	var err error
	if s.adapter != nil {
		err = s.adapter.Close()
		if err != nil {
			s.logger.Printf("Error closing connection: %v", err)
		}
		s.adapter = nil
	}
	if s.state != StateClosed {
		s.logger.Printf("Session to %s closed", s.device.Address)
	}
	s.state = StateClosed
	return err
}
