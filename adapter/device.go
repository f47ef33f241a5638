package adapter

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Kind identifies the transport used to reach a device
type Kind int

const (
	KindRFCOMM Kind = iota
	KindSerial
	KindUSB
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindRFCOMM:
		return "rfcomm"
	case KindSerial:
		return "serial"
	case KindUSB:
		return "usb"
	default:
		return "custom"
	}
}

// SPPUUID is the Serial Port Profile service class
const SPPUUID = "00001101-0000-1000-8000-00805F9B34FB"

// Defaults applied by Resolver when its fields are zero
const (
	DefaultRFCOMMChannel = 1
	DefaultBaudRate      = 9600
)

// Device is a resolved printer address. It builds a fresh Adapter for
// every session.
type Device struct {
	Address string
	Kind    Kind
	factory func() Adapter
}

// NewDevice creates a Device backed by a custom adapter factory
func NewDevice(address string, kind Kind, factory func() Adapter) Device {
	return Device{Address: address, Kind: kind, factory: factory}
}

// NewAdapter returns a new, unopened transport for the device
func (d Device) NewAdapter() Adapter {
	return d.factory()
}

// Resolver maps stored addresses onto devices. Accepted forms:
//
//	AA:BB:CC:DD:EE:FF   RFCOMM socket on Channel
//	/dev/rfcomm0, COM4  serial port at BaudRate
//	usb:04b8:0202       USB printer by vendor and product id
type Resolver struct {
	Channel  int
	BaudRate int
}

// Resolve returns the device for address or ErrDeviceNotFound
func (r Resolver) Resolve(address string) (Device, error) {
	addr := strings.TrimSpace(address)

	if mac, err := net.ParseMAC(addr); err == nil && len(mac) == 6 {
		var bd [6]byte
		copy(bd[:], mac)
		channel := r.Channel
		if channel <= 0 {
			channel = DefaultRFCOMMChannel
		}
		return NewDevice(addr, KindRFCOMM, func() Adapter {
			return NewRFCOMMAdapter(bd, uint8(channel))
		}), nil
	}

	if rest, ok := strings.CutPrefix(strings.ToLower(addr), "usb:"); ok {
		vid, pid, err := parseVIDPID(rest)
		if err != nil {
			return Device{}, fmt.Errorf("%w: %s: %v", ErrDeviceNotFound, addr, err)
		}
		return NewDevice(addr, KindUSB, func() Adapter {
			return NewUSBAdapter(vid, pid)
		}), nil
	}

	if isSerialPath(addr) {
		baud := r.BaudRate
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		return NewDevice(addr, KindSerial, func() Adapter {
			return NewSerialAdapter(addr, baud)
		}), nil
	}

	return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, address)
}

func parseVIDPID(s string) (uint16, uint16, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected vid:pid")
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("vendor id: %w", err)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("product id: %w", err)
	}
	return uint16(vid), uint16(pid), nil
}

func isSerialPath(s string) bool {
	if strings.HasPrefix(s, "/dev/") && len(s) > len("/dev/") {
		return true
	}
	upper := strings.ToUpper(strings.TrimPrefix(s, `\\.\`))
	if n, ok := strings.CutPrefix(upper, "COM"); ok {
		_, err := strconv.Atoi(n)
		return err == nil
	}
	return false
}
