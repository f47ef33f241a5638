//go:build !linux

package adapter

import "time"

// RFCOMMAdapter is unavailable off Linux; bind the device to a serial port
// and use its path (COMn, /dev/tty.*) instead.
type RFCOMMAdapter struct {
	addr    [6]byte
	channel uint8
}

// NewRFCOMMAdapter creates an adapter that always fails to open
func NewRFCOMMAdapter(addr [6]byte, channel uint8) *RFCOMMAdapter {
	return &RFCOMMAdapter{addr: addr, channel: channel}
}

func (a *RFCOMMAdapter) Open() error { return ErrNotSupported }
func (a *RFCOMMAdapter) Write(data []byte) (int, error) { return 0, ErrNotOpen }
func (a *RFCOMMAdapter) Read(buf []byte) (int, error) { return 0, ErrNotOpen }
func (a *RFCOMMAdapter) ReadTimeout(buf []byte, _ time.Duration) (int, error) { return 0, ErrNotOpen }
func (a *RFCOMMAdapter) Close() error { return nil }
func (a *RFCOMMAdapter) IsOpen() bool { return false }
