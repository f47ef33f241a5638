//go:build linux

package adapter

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RFCOMMAdapter talks to a Bluetooth printer over a raw RFCOMM socket
type RFCOMMAdapter struct {
	addr    [6]byte
	channel uint8
	file    *os.File
	isOpen  bool
	mu      sync.Mutex
}

// NewRFCOMMAdapter creates an adapter for the device with the given address
// (in display order, most significant byte first) and RFCOMM channel
func NewRFCOMMAdapter(addr [6]byte, channel uint8) *RFCOMMAdapter {
	return &RFCOMMAdapter{addr: addr, channel: channel}
}

func (a *RFCOMMAdapter) String() string {
	return fmt.Sprintf("rfcomm:%s/%d", net.HardwareAddr(a.addr[:]), a.channel)
}

// Open connects the socket
func (a *RFCOMMAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen {
		return ErrAlreadyOpen
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return fmt.Errorf("failed to create rfcomm socket: %w", err)
	}

	sa := &unix.SockaddrRFCOMM{Channel: a.channel}
	// bdaddr_t is little-endian
	for i := range a.addr {
		sa.Addr[i] = a.addr[len(a.addr)-1-i]
	}

	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to connect %s: %w", a, err)
	}

	// A non-blocking descriptor lets os.File use the runtime poller, which
	// gives us read deadlines.
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to set non-blocking: %w", err)
	}

	a.file = os.NewFile(uintptr(fd), a.String())
	a.isOpen = true
	return nil
}

// Write sends data to the printer
func (a *RFCOMMAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	n, err := a.file.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read blocks until data is available
func (a *RFCOMMAdapter) Read(buf []byte) (int, error) {
	return a.ReadTimeout(buf, 0)
}

// ReadTimeout reads with a deadline; d <= 0 blocks indefinitely
func (a *RFCOMMAdapter) ReadTimeout(buf []byte, d time.Duration) (int, error) {
	a.mu.Lock()
	f := a.file
	open := a.isOpen
	a.mu.Unlock()

	if !open {
		return 0, ErrNotOpen
	}

	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	if err := f.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}

	n, err := f.Read(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the socket
func (a *RFCOMMAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return nil
	}

	a.isOpen = false
	err := a.file.Close()
	a.file = nil
	return err
}

// IsOpen returns whether the socket is connected
func (a *RFCOMMAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOpen
}
