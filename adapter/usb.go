package adapter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/gousb"
)

// IfaceClassPrinter is the USB printer interface class
// Reference: http://www.usb.org/developers/defined_class
const IfaceClassPrinter = 0x07

// USBAdapter manages USB printer communication
type USBAdapter struct {
	vid, pid    gousb.ID
	ctx         *gousb.Context
	device      *gousb.Device
	config      *gousb.Config
	iface       *gousb.Interface
	outEndpoint *gousb.OutEndpoint
	inEndpoint  *gousb.InEndpoint
	isOpen      bool
	mu          sync.Mutex
}

// NewUSBAdapter creates an adapter for the device with the given ids. The
// device is not touched until Open.
func NewUSBAdapter(vid, pid uint16) *USBAdapter {
	return &USBAdapter{vid: gousb.ID(vid), pid: gousb.ID(pid)}
}

// Open opens the USB device and claims the printer interface
func (a *USBAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isOpen {
		return ErrAlreadyOpen
	}

	a.ctx = gousb.NewContext()
	if err := a.openLocked(); err != nil {
		a.releaseLocked()
		return err
	}

	a.isOpen = true
	return nil
}

func (a *USBAdapter) openLocked() error {
	device, err := a.ctx.OpenDeviceWithVIDPID(a.vid, a.pid)
	if err != nil {
		return fmt.Errorf("failed to open %s:%s: %w", a.vid, a.pid, err)
	}
	if device == nil {
		return fmt.Errorf("%w: usb %s:%s", ErrDeviceNotFound, a.vid, a.pid)
	}
	a.device = device

	// Set auto-detach kernel driver on Linux
	if runtime.GOOS == "linux" {
		a.device.SetAutoDetach(true)
	}

	cfgNum, err := a.device.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("failed to get active config: %w", err)
	}

	cfg, err := a.device.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	a.config = cfg

	ifaceNum := -1
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				ifaceNum = iface.Number
				break
			}
		}
		if ifaceNum >= 0 {
			break
		}
	}
	if ifaceNum < 0 {
		return errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface: %w", err)
	}
	a.iface = iface

	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut && a.outEndpoint == nil {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				a.outEndpoint = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && a.inEndpoint == nil {
			if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
				a.inEndpoint = ep
			}
		}
	}

	if a.outEndpoint == nil {
		return errors.New("cannot find output endpoint from printer")
	}
	return nil
}

// Write sends data to the printer
func (a *USBAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	n, err := a.outEndpoint.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read blocks until data is available
func (a *USBAdapter) Read(buf []byte) (int, error) {
	return a.readContext(context.Background(), buf)
}

// ReadTimeout reads with a deadline; many printers have no input endpoint
// and never answer
func (a *USBAdapter) ReadTimeout(buf []byte, d time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	n, err := a.readContext(ctx, buf)
	if err != nil && ctx.Err() != nil {
		return n, nil
	}
	return n, err
}

func (a *USBAdapter) readContext(ctx context.Context, buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return 0, ErrNotOpen
	}

	if a.inEndpoint == nil {
		return 0, errors.New("input endpoint not available")
	}

	n, err := a.inEndpoint.ReadContext(ctx, buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close releases the interface, device and context
func (a *USBAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOpen {
		return nil
	}

	a.isOpen = false
	return a.releaseLocked()
}

func (a *USBAdapter) releaseLocked() error {
	var errs []error

	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}
	a.outEndpoint = nil
	a.inEndpoint = nil

	if a.config != nil {
		if err := a.config.Close(); err != nil {
			errs = append(errs, err)
		}
		a.config = nil
	}

	if a.device != nil {
		if err := a.device.Close(); err != nil {
			errs = append(errs, err)
		}
		a.device = nil
	}

	if a.ctx != nil {
		if err := a.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		a.ctx = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// IsOpen returns whether the device is open
func (a *USBAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isOpen
}
