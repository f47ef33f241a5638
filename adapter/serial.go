package adapter

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialAdapter drives a printer through a serial port, typically an RFCOMM
// tty bound with `rfcomm bind` or a Bluetooth COM port on Windows
type SerialAdapter struct {
	portName string
	baudRate int
	port     serial.Port
	isOpen   bool
	mu       sync.Mutex
}

// NewSerialAdapter creates an adapter for portName at baudRate 8N1
func NewSerialAdapter(portName string, baudRate int) *SerialAdapter {
	return &SerialAdapter{portName: portName, baudRate: baudRate}
}

// Open opens the serial port
func (a *SerialAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen {
		return ErrAlreadyOpen
	}

	mode := &serial.Mode{
		BaudRate: a.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(a.portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open port %s: %w", a.portName, err)
	}

	a.port = port
	a.isOpen = true
	return nil
}

// Write sends data to the printer
func (a *SerialAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	n, err := a.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Flush waits until all written bytes have left the port
func (a *SerialAdapter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return ErrNotOpen
	}
	return a.port.Drain()
}

// Read blocks until data is available
func (a *SerialAdapter) Read(buf []byte) (int, error) {
	return a.ReadTimeout(buf, serial.NoTimeout)
}

// ReadTimeout reads with a deadline; a zero read means the timeout passed
func (a *SerialAdapter) ReadTimeout(buf []byte, d time.Duration) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	if err := a.port.SetReadTimeout(d); err != nil {
		return 0, fmt.Errorf("set read timeout: %w", err)
	}

	n, err := a.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the port
func (a *SerialAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return nil
	}

	a.isOpen = false
	err := a.port.Close()
	a.port = nil
	return err
}

// IsOpen returns whether the port is open
func (a *SerialAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOpen
}
