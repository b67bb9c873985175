package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rein/internal/api"
	"rein/internal/config"
	"rein/internal/dispatch"
	"rein/internal/input/inputtest"
)

// startHost runs a host over a recording device and returns its host:port
func startHost(t *testing.T) (string, *inputtest.Recorder, *config.Manager) {
	t.Helper()

	dev := inputtest.NewRecorder(100, 100)
	mgr := config.NewMemoryManager(config.DefaultConfig())
	d := dispatch.New(dev, mgr, dispatch.Options{
		LocalIP:      func() (string, error) { return "192.168.7.7", nil },
		ZoomModifier: "ctrl",
	})

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	ts := httptest.NewServer(api.NewServer(mgr, d, api.Options{}).Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return strings.TrimPrefix(ts.URL, "http://"), dev, mgr
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDiscoverReturnsServerIP(t *testing.T) {
	addr, _, _ := startHost(t)

	ip, err := discover(context.Background(), addr, false, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "192.168.7.7", ip)
}

func TestDiscoverTimesOut(t *testing.T) {
	_, err := discover(context.Background(), "127.0.0.1:1", false, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunClientSendsStdinFrames(t *testing.T) {
	addr, dev, _ := startHost(t)

	in, feed := io.Pipe()
	out := &lockedBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runClient(ctx, addr, false, in, out) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "state: connected")
	}, 2*time.Second, time.Millisecond)

	_, err := io.WriteString(feed, "{\"type\":\"move\",\"dx\":7,\"dy\":-3}\n\nnot json\n{\"type\":\"get-ip\"}\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `recv: {"type":"server-ip","ip":"192.168.7.7"}`)
	}, 2*time.Second, time.Millisecond)
	assert.Contains(t, out.String(), "invalid: ")

	x, y := dev.Position()
	assert.Equal(t, 107, x)
	assert.Equal(t, 97, y)

	cancel()
	feed.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runClient did not return")
	}
}

func TestRetargetAddr(t *testing.T) {
	next, changed := retargetAddr("10.0.0.2:3000", 9000)
	assert.True(t, changed)
	assert.Equal(t, "10.0.0.2:9000", next)

	_, changed = retargetAddr("10.0.0.2:3000", 3000)
	assert.False(t, changed)

	_, changed = retargetAddr("no-port", 9000)
	assert.False(t, changed)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--short"})

	require.NoError(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}
