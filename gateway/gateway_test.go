package gateway

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nixxel-company-limited/escpos-bt-server/adapter"
	"github.com/nixxel-company-limited/escpos-bt-server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records calls and counts how many sessions are live at once
type fakeSession struct {
	h      *harness
	mu     sync.Mutex
	live   bool
	closed bool
}

func (s *fakeSession) Connect() error {
	s.h.connects.Add(1)
	if s.h.connectErr != nil {
		return s.h.connectErr
	}
	s.mu.Lock()
	s.live = true
	s.mu.Unlock()

	if n := s.h.live.Add(1); n > 1 {
		s.h.overlap.Store(true)
	}
	return nil
}

func (s *fakeSession) Send(data []byte) error {
	time.Sleep(s.h.sendDelay)
	if s.h.failNextSend.CompareAndSwap(true, false) {
		s.Close()
		return errors.New("broken pipe")
	}
	s.h.mu.Lock()
	s.h.sent = append(s.h.sent, data)
	s.h.mu.Unlock()
	return nil
}

func (s *fakeSession) SendAndReceive(data []byte, timeout time.Duration) ([]byte, error) {
	s.h.mu.Lock()
	s.h.probes = append(s.h.probes, data)
	s.h.mu.Unlock()
	return s.h.reply, nil
}

func (s *fakeSession) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live {
		s.h.live.Add(-1)
	}
	s.live = false
	s.closed = true
	s.h.closes.Add(1)
	return nil
}

type fakeResolver struct {
	err   error
	calls int
}

func (r *fakeResolver) Resolve(address string) (adapter.Device, error) {
	r.calls++
	if r.err != nil {
		return adapter.Device{}, r.err
	}
	return adapter.NewDevice(address, adapter.KindCustom, nil), nil
}

type harness struct {
	connects     atomic.Int32
	closes       atomic.Int32
	live         atomic.Int32
	overlap      atomic.Bool
	failNextSend atomic.Bool
	connectErr   error
	sendDelay    time.Duration
	reply        []byte

	mu       sync.Mutex
	sent     [][]byte
	probes   [][]byte
	sessions []*fakeSession
}

func newHarness(t *testing.T, address string) (*harness, *Gateway, *fakeResolver) {
	t.Helper()
	h := &harness{}
	r := &fakeResolver{}
	g := New(store.NewMemoryStore(address), r,
		WithLogger(log.New(io.Discard, "", 0)),
		WithSessionFactory(func(device adapter.Device) Session {
			s := &fakeSession{h: h}
			h.mu.Lock()
			h.sessions = append(h.sessions, s)
			h.mu.Unlock()
			return s
		}),
	)
	return h, g, r
}

func TestPrintNoPrinterSelected(t *testing.T) {
	h, g, r := newHarness(t, "")

	err := g.Print([]byte("x"))
	assert.ErrorIs(t, err, ErrNoPrinterSelected)
	assert.Equal(t, "no printer selected", err.Error())
	assert.Zero(t, h.connects.Load())
	assert.Zero(t, r.calls)
}

func TestPrintDeviceNotFound(t *testing.T) {
	h, g, r := newHarness(t, "nowhere")
	r.err = errors.New("unknown address")

	err := g.Print([]byte("x"))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Zero(t, h.connects.Load())
}

func TestPrintResolverSentinelNotDoubled(t *testing.T) {
	_, g, r := newHarness(t, "nowhere")
	r.err = adapter.ErrDeviceNotFound

	err := g.Print([]byte("x"))
	assert.Equal(t, "printer device not found", err.Error())
}

func TestPrintConnectFailure(t *testing.T) {
	h, g, _ := newHarness(t, "00:11:22:33:44:55")
	h.connectErr = errors.New("host is down")

	err := g.Print([]byte("x"))
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.Contains(t, err.Error(), "failed to connect to printer")
	assert.Equal(t, int32(1), h.connects.Load(), "no internal retry")

	// The failed session is discarded; the next call tries again
	h.connectErr = nil
	require.NoError(t, g.Print([]byte("x")))
	assert.Equal(t, int32(2), h.connects.Load())
}

func TestPrintReusesLiveSession(t *testing.T) {
	h, g, _ := newHarness(t, "00:11:22:33:44:55")

	require.NoError(t, g.Print([]byte("one")))
	require.NoError(t, g.Print([]byte("two")))

	assert.Equal(t, int32(1), h.connects.Load())
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, h.sent)
}

func TestPrintSendFailureForcesReconnect(t *testing.T) {
	h, g, _ := newHarness(t, "00:11:22:33:44:55")
	h.failNextSend.Store(true)

	err := g.Print([]byte("one"))
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "failed to send data")

	require.NoError(t, g.Print([]byte("two")))
	assert.Equal(t, int32(2), h.connects.Load())
	assert.True(t, h.sessions[0].closed)
}

func TestPrintReplacesDeadSession(t *testing.T) {
	h, g, _ := newHarness(t, "00:11:22:33:44:55")

	require.NoError(t, g.Print([]byte("one")))
	// Drop the link underneath the gateway
	h.sessions[0].mu.Lock()
	h.sessions[0].live = false
	h.sessions[0].mu.Unlock()
	h.live.Add(-1)

	require.NoError(t, g.Print([]byte("two")))
	assert.Equal(t, int32(2), h.connects.Load())
	assert.True(t, h.sessions[0].closed, "stale session is closed before replacement")
}

func TestPrintConcurrentCallsShareOneSession(t *testing.T) {
	h, g, _ := newHarness(t, "00:11:22:33:44:55")
	h.sendDelay = 5 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				h.failNextSend.Store(true)
			}
			g.Print([]byte{byte(i)})
		}(i)
	}
	wg.Wait()

	assert.False(t, h.overlap.Load(), "two sessions were live at the same time")
	assert.LessOrEqual(t, h.live.Load(), int32(1))
}

func TestQueryStatusUsesDedicatedSession(t *testing.T) {
	h, g, _ := newHarness(t, "00:11:22:33:44:55")
	require.NoError(t, g.Print([]byte("job")))
	h.reply = []byte{0x12}

	status, err := g.QueryStatus(StatusCommand, 100*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, LevelNormal, status.Level)
	assert.Equal(t, [][]byte{StatusCommand}, h.probes)
	require.Len(t, h.sessions, 2)
	assert.True(t, h.sessions[1].closed, "probe session is always closed")
	assert.Equal(t, [][]byte{[]byte("job")}, h.sent, "probe never touches the print session")
	assert.True(t, h.sessions[0].closed, "print session is released before probing")
	assert.False(t, h.overlap.Load())

	require.NoError(t, g.Print([]byte("again")))
	assert.Equal(t, int32(3), h.connects.Load())
}

func TestQueryStatusLevels(t *testing.T) {
	testCases := []struct {
		name  string
		reply []byte
		want  Level
	}{
		{"Critical", []byte{0x04}, LevelCritical},
		{"CriticalWinsOverLow", []byte{0x0C}, LevelCritical},
		{"Low", []byte{0x08}, LevelLow},
		{"Normal", []byte{0x12, 0xFF}, LevelNormal},
		{"Empty", nil, LevelUnsupported},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, g, _ := newHarness(t, "00:11:22:33:44:55")
			h.reply = tc.reply

			status, err := g.QueryStatus(StatusCommand, DefaultStatusTimeout)
			require.NoError(t, err)
			assert.Equal(t, tc.want, status.Level)
		})
	}
}

func TestQueryStatusFailures(t *testing.T) {
	h, g, _ := newHarness(t, "")
	status, err := g.QueryStatus(StatusCommand, DefaultStatusTimeout)
	assert.ErrorIs(t, err, ErrNoPrinterSelected)
	assert.Equal(t, LevelUnsupported, status.Level)
	assert.Zero(t, h.connects.Load())

	h, g, _ = newHarness(t, "00:11:22:33:44:55")
	h.connectErr = errors.New("timeout")
	status, err = g.QueryStatus(StatusCommand, DefaultStatusTimeout)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, LevelUnsupported, status.Level)
	assert.True(t, h.sessions[0].closed)
}

func TestGatewayClose(t *testing.T) {
	h, g, _ := newHarness(t, "00:11:22:33:44:55")
	assert.NoError(t, g.Close())

	require.NoError(t, g.Print([]byte("x")))
	require.NoError(t, g.Close())
	assert.Zero(t, h.live.Load())

	require.NoError(t, g.Print([]byte("y")))
	assert.Equal(t, int32(2), h.connects.Load())
}

func TestGatewayWithRealSessions(t *testing.T) {
	mock := &recordingAdapter{}
	r := resolverFunc(func(address string) (adapter.Device, error) {
		return adapter.NewDevice(address, adapter.KindCustom, func() adapter.Adapter { return mock }), nil
	})
	g := New(store.NewMemoryStore("mock"), r, WithLogger(log.New(io.Discard, "", 0)))

	require.NoError(t, g.Print([]byte{0x1B, 0x40}))
	assert.Equal(t, []byte{0x1B, 0x40}, mock.data)
	require.NoError(t, g.Close())
	assert.False(t, mock.open)
}

type resolverFunc func(address string) (adapter.Device, error)

func (f resolverFunc) Resolve(address string) (adapter.Device, error) { return f(address) }

type recordingAdapter struct {
	open bool
	data []byte
}

func (a *recordingAdapter) Open() error { a.open = true; return nil }
func (a *recordingAdapter) Write(d []byte) (int, error) {
	a.data = append(a.data, d...)
	return len(d), nil
}
func (a *recordingAdapter) Read(buf []byte) (int, error) { return 0, nil }
func (a *recordingAdapter) ReadTimeout(buf []byte, _ time.Duration) (int, error) {
	return 0, nil
}
func (a *recordingAdapter) Close() error { a.open = false; return nil }
func (a *recordingAdapter) IsOpen() bool { return a.open }
