package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tutu-network/aigov/internal/domain"
	"github.com/tutu-network/aigov/internal/infra/resource"
)

// shortSocketPath keeps the path under the sun_path limit.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "aigov")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "gov.sock")
}

type harness struct {
	state  *resource.State
	server *Server
	client *Client
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T) *harness {
	t.Helper()
	path := shortSocketPath(t)
	state := resource.NewState()
	srv := NewServer(Config{SocketPath: path, ReadTimeout: time.Second}, state, zerolog.Nop())

	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	h := &harness{state: state, server: srv, client: NewClient(path), cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func TestServer_UnknownCommand(t *testing.T) {
	h := startServer(t)
	reply, err := h.client.Send(context.Background(), "PING")
	require.NoError(t, err)
	require.Equal(t, "ERROR UNKNOWN COMMAND\n", reply)
}

func TestServer_SetModeThenStatus(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	reply, err := h.client.Send(ctx, "SET_MODE LIMITED")
	require.NoError(t, err)
	require.Equal(t, "OK MODE LIMITED\n", reply)

	reply, err = h.client.Send(ctx, "STATUS")
	require.NoError(t, err)
	require.Contains(t, reply, "MODE=2")
}

func TestServer_ForcedModeStableUnderSensorChurn(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	_, err := h.client.SetMode(ctx, domain.ModeFull)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				h.state.Record(float64(40+i%50), float64(i%100))
			}
		}
	}()

	for i := 0; i < 20; i++ {
		s, err := h.client.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.ModeFull, s.Mode)
	}
	close(stop)
	wg.Wait()
}

func TestServer_RunInferIdempotentUntilConsumed(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		reply, err := h.client.Trigger(ctx)
		require.NoError(t, err)
		require.Equal(t, ReplyTriggered, reply)
	}
	require.True(t, h.state.ConsumeTrigger())
	require.False(t, h.state.ConsumeTrigger())
}

func TestServer_EmptyRequest(t *testing.T) {
	h := startServer(t)

	conn, err := net.Dial("unix", h.server.SocketPath())
	require.NoError(t, err)
	defer conn.Close()
	conn.(*net.UnixConn).CloseWrite()

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, ReplyUnknownCommand, string(buf[:n]))
}

func TestServer_ObserverSeesCommands(t *testing.T) {
	path := shortSocketPath(t)
	srv := NewServer(Config{SocketPath: path}, resource.NewState(), zerolog.Nop())

	var mu sync.Mutex
	var seen []string
	srv.SetObserver(func(name, reply string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, name+":"+strings.TrimSpace(reply))
	})

	ln, err := srv.Listen()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	c := NewClient(path)
	_, err = c.Send(ctx, "SET_MODE OFF")
	require.NoError(t, err)
	_, err = c.Send(ctx, "bogus")
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"SET_MODE:OK MODE OFF", "UNKNOWN:ERROR UNKNOWN COMMAND"}, seen)
}

func TestServer_ShutdownUnblocksAcceptAndRemovesSocket(t *testing.T) {
	path := shortSocketPath(t)
	srv := NewServer(Config{SocketPath: path}, resource.NewState(), zerolog.Nop())
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "socket file should be removed, stat err = %v", err)
}

func TestServer_ListenRemovesStaleSocket(t *testing.T) {
	path := shortSocketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	srv := NewServer(Config{SocketPath: path}, resource.NewState(), zerolog.Nop())
	ln, err := srv.Listen()
	require.NoError(t, err)
	ln.Close()
}

func TestServer_ListenFailure(t *testing.T) {
	srv := NewServer(Config{SocketPath: "/nonexistent-dir/aigov/gov.sock"}, resource.NewState(), zerolog.Nop())
	_, err := srv.Listen()
	require.Error(t, err)
}

func TestClient_NoServer(t *testing.T) {
	c := NewClient(shortSocketPath(t))
	_, err := c.Send(context.Background(), "STATUS")
	require.Error(t, err)
}

func TestClient_SetModeRejectsInvalid(t *testing.T) {
	c := NewClient(shortSocketPath(t))
	_, err := c.SetMode(context.Background(), domain.Mode(9))
	require.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestServer_ReadsAtMost127Bytes(t *testing.T) {
	h := startServer(t)

	exchange := func(req string) string {
		conn, err := net.Dial("unix", h.server.SocketPath())
		require.NoError(t, err)
		defer conn.Close()
		_, err = io.WriteString(conn, req)
		require.NoError(t, err)

		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}

	// Trailing bytes past the command are ignored.
	require.Equal(t, "OK MODE OFF\n", exchange("SET_MODE OFF"+strings.Repeat("x", 300)))
	require.Equal(t, domain.ModeOff, h.state.Mode())

	// A command that starts beyond the first 127 bytes is never seen.
	require.Equal(t, ReplyUnknownCommand, exchange(strings.Repeat(" ", 130)+"STATUS"))
}

func TestServer_BoundsConcurrentHandlers(t *testing.T) {
	path := shortSocketPath(t)
	srv := NewServer(Config{SocketPath: path, MaxConcurrent: 1, ReadTimeout: 300 * time.Millisecond},
		resource.NewState(), zerolog.Nop())
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// A silent client occupies the only handler slot until its read times out.
	idle, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer idle.Close()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	reply, err := NewClient(path).Send(context.Background(), "STATUS")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(reply, "TEMP="), reply)
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond,
		"second client should wait for the handler slot")
}

// failingListener fails Accept a fixed number of times, then blocks until
// closed.
type failingListener struct {
	mu       sync.Mutex
	failures int
	calls    []time.Time
	closed   chan struct{}
	once     sync.Once
}

func newFailingListener(failures int) *failingListener {
	return &failingListener{failures: failures, closed: make(chan struct{})}
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.calls = append(l.calls, time.Now())
	fail := len(l.calls) <= l.failures
	l.mu.Unlock()
	if fail {
		return nil, errors.New("accept: too many open files")
	}
	<-l.closed
	return nil, net.ErrClosed
}

func (l *failingListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *failingListener) Addr() net.Addr { return &net.UnixAddr{Name: "fake", Net: "unix"} }

func (l *failingListener) callTimes() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Time(nil), l.calls...)
}

func TestServer_AcceptErrorsBackOff(t *testing.T) {
	srv := NewServer(Config{SocketPath: shortSocketPath(t)}, resource.NewState(), zerolog.Nop())
	ln := newFailingListener(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	// Four failures, then the fifth call blocks.
	require.Eventually(t, func() bool { return len(ln.callTimes()) == 5 }, 2*time.Second, time.Millisecond)

	calls := ln.callTimes()
	want := minAcceptDelay
	for i := 1; i < len(calls); i++ {
		if gap := calls[i].Sub(calls[i-1]); gap < want {
			t.Errorf("gap before accept %d = %v, want at least %v", i, gap, want)
		}
		want *= 2
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_CancelDuringAcceptBackoff(t *testing.T) {
	srv := NewServer(Config{SocketPath: shortSocketPath(t)}, resource.NewState(), zerolog.Nop())
	ln := newFailingListener(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	// Let the delay grow past the cap's lower doublings.
	time.Sleep(200 * time.Millisecond)
	if n := len(ln.callTimes()); n > 10 {
		t.Errorf("accept called %d times in 200ms, want backoff to bound it", n)
	}

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
		require.Less(t, time.Since(start), maxAcceptDelay)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
