package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		address string
		kind    Kind
	}{
		{"00:11:22:AA:BB:CC", KindRFCOMM},
		{"00-11-22-aa-bb-cc", KindRFCOMM},
		{"/dev/rfcomm0", KindSerial},
		{"COM4", KindSerial},
		{`\\.\COM12`, KindSerial},
		{"usb:04b8:0202", KindUSB},
		{"USB:0519:0001", KindUSB},
	}

	r := Resolver{}
	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			dev, err := r.Resolve(tc.address)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, dev.Kind)
			assert.Equal(t, tc.address, dev.Address)
			assert.NotNil(t, dev.NewAdapter())
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	r := Resolver{}
	for _, addr := range []string{"", "printer", "00:11:22", "/dev/", "COMX", "usb:zz:01", "usb:04b8"} {
		t.Run(addr, func(t *testing.T) {
			_, err := r.Resolve(addr)
			assert.ErrorIs(t, err, ErrDeviceNotFound)
		})
	}
}

func TestResolveBuildsFreshAdapters(t *testing.T) {
	dev, err := Resolver{BaudRate: 115200}.Resolve("/dev/rfcomm1")
	require.NoError(t, err)

	a1 := dev.NewAdapter()
	a2 := dev.NewAdapter()
	assert.NotSame(t, a1, a2)

	serialAdapter, ok := a1.(*SerialAdapter)
	require.True(t, ok)
	assert.Equal(t, 115200, serialAdapter.baudRate)
	assert.False(t, serialAdapter.IsOpen())
}

func TestResolveRFCOMMDefaults(t *testing.T) {
	dev, err := Resolver{}.Resolve("00:11:22:AA:BB:CC")
	require.NoError(t, err)

	a, ok := dev.NewAdapter().(*RFCOMMAdapter)
	require.True(t, ok)
	assert.Equal(t, uint8(DefaultRFCOMMChannel), a.channel)
	assert.Equal(t, [6]byte{0x00, 0x11, 0x22, 0xAA, 0xBB, 0xCC}, a.addr)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rfcomm", KindRFCOMM.String())
	assert.Equal(t, "serial", KindSerial.String())
	assert.Equal(t, "usb", KindUSB.String())
	assert.Equal(t, "custom", KindCustom.String())
}

func TestClosedAdaptersRefuseIO(t *testing.T) {
	adapters := []Adapter{
		NewSerialAdapter("/dev/null-port", 9600),
		NewRFCOMMAdapter([6]byte{}, 1),
	}
	buf := make([]byte, 8)
	for _, a := range adapters {
		assert.False(t, a.IsOpen())
		_, err := a.Write([]byte("x"))
		assert.Error(t, err)
		_, err = a.ReadTimeout(buf, 0)
		assert.Error(t, err)
		assert.NoError(t, a.Close())
	}
}
