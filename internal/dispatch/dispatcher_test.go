package dispatch

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rein/internal/config"
	"rein/internal/input"
	"rein/internal/input/inputtest"
	"rein/internal/metrics"
	"rein/internal/protocol"
)

func newTestDispatcher(t *testing.T, cfg config.Config) (*Dispatcher, *inputtest.Recorder, *config.Manager) {
	t.Helper()
	dev := inputtest.NewRecorder(100, 100)
	mgr := config.NewMemoryManager(cfg)
	d := New(dev, mgr, Options{
		LocalIP:      func() (string, error) { return "192.168.1.42", nil },
		Metrics:      metrics.New(prometheus.NewRegistry()),
		ZoomModifier: "ctrl",
	})
	return d, dev, mgr
}

func handle(t *testing.T, d *Dispatcher, msg protocol.Message) (protocol.Message, error) {
	t.Helper()
	return d.Handle(context.Background(), msg)
}

func TestMoveAppliesSensitivity(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.Config{FrontendPort: 3000, MouseSensitivity: 2.0})

	_, err := handle(t, d, protocol.Move{DX: 10, DY: 0})
	require.NoError(t, err)

	x, y := dev.Position()
	assert.Equal(t, 120, x)
	assert.Equal(t, 100, y)
}

func TestMoveIsRelativeToCurrentPointer(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Move{DX: -30, DY: 5})
	require.NoError(t, err)
	_, err = handle(t, d, protocol.Move{DX: -200, DY: 5})
	require.NoError(t, err)

	x, y := dev.Position()
	assert.Equal(t, -130, x, "no clamping to screen bounds")
	assert.Equal(t, 110, y)
}

func TestMoveHugeDeltaKeepsDirection(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.Config{FrontendPort: 3000, MouseSensitivity: 2.0})

	_, err := handle(t, d, protocol.Move{DX: 1e20, DY: -1e300})
	require.NoError(t, err)

	x, y := dev.Position()
	assert.Equal(t, 100+MaxMoveStep, x)
	assert.Equal(t, 100-MaxMoveStep, y)
}

func TestMoveOffset(t *testing.T) {
	assert.Equal(t, 3, moveOffset(1.4, 2))
	assert.Equal(t, -3, moveOffset(-1.4, 2))
	assert.Equal(t, MaxMoveStep, moveOffset(math.MaxFloat64, 1))
	assert.Equal(t, -MaxMoveStep, moveOffset(-math.MaxFloat64, 1))
	assert.Equal(t, 0, moveOffset(math.NaN(), 1))
}

func TestMoveLocationFailure(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())
	dev.FailOp("location")

	_, err := handle(t, d, protocol.Move{DX: 1, DY: 1})
	assert.ErrorIs(t, err, inputtest.ErrInjected)
	assert.Empty(t, dev.Calls())
}

func TestClickPressIsIdempotent(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	for i := 0; i < 2; i++ {
		_, err := handle(t, d, protocol.Click{Button: protocol.ButtonLeft, Press: true})
		require.NoError(t, err)
	}
	assert.True(t, dev.ButtonDown(input.ButtonLeft))

	_, err := handle(t, d, protocol.Click{Button: protocol.ButtonLeft, Press: false})
	require.NoError(t, err)
	assert.False(t, dev.ButtonDown(input.ButtonLeft))
}

func TestClickMapsButtons(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Click{Button: protocol.ButtonMiddle, Press: true})
	require.NoError(t, err)
	_, err = handle(t, d, protocol.Click{Button: protocol.ButtonRight, Press: false})
	require.NoError(t, err)

	assert.Equal(t, []string{"toggle(center,true)", "toggle(right,false)"}, dev.Strings())
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func TestScrollSigns(t *testing.T) {
	deltas := []float64{-7, -0.5, 3, 12.5}
	for _, invert := range []bool{false, true} {
		inv := 1.0
		if invert {
			inv = -1
		}
		for _, dx := range deltas {
			for _, dy := range deltas {
				d, dev, _ := newTestDispatcher(t, config.Config{FrontendPort: 3000, MouseInvert: invert, MouseSensitivity: 1})

				_, err := handle(t, d, protocol.Scroll{DX: dx, DY: dy})
				require.NoError(t, err)

				calls := dev.Calls()
				require.Len(t, calls, 2)
				assert.Equal(t, input.Vertical, calls[0].Axis)
				assert.Equal(t, sign(dy)*inv, sign(calls[0].Amount))
				assert.Equal(t, math.Abs(dy), math.Abs(calls[0].Amount))
				assert.Equal(t, input.Horizontal, calls[1].Axis)
				assert.Equal(t, sign(dx)*-1*inv, sign(calls[1].Amount))
				assert.Equal(t, math.Abs(dx), math.Abs(calls[1].Amount))
			}
		}
	}
}

func TestScrollZeroAxisIsSkipped(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Scroll{DX: 0, DY: 4})
	require.NoError(t, err)
	_, err = handle(t, d, protocol.Scroll{DX: 2, DY: 0})
	require.NoError(t, err)
	_, err = handle(t, d, protocol.Scroll{})
	require.NoError(t, err)

	assert.Equal(t, []string{"scroll(vertical,4)", "scroll(horizontal,-2)"}, dev.Strings())
}

func TestZoomScalesClampsAndWraps(t *testing.T) {
	deltas := []float64{-40, -10, -3, -0.2, 0.2, 3, 10, 40}
	for _, invert := range []bool{false, true} {
		inv := 1.0
		if invert {
			inv = -1
		}
		for _, delta := range deltas {
			d, dev, _ := newTestDispatcher(t, config.Config{FrontendPort: 3000, MouseInvert: invert, MouseSensitivity: 1})

			_, err := handle(t, d, protocol.Zoom{Delta: delta})
			require.NoError(t, err)

			calls := dev.Calls()
			require.Len(t, calls, 3, "delta %v", delta)
			assert.Equal(t, "key(ctrl,true)", calls[0].String())
			assert.Equal(t, "scroll", calls[1].Op)
			assert.Equal(t, input.Vertical, calls[1].Axis)
			assert.InDelta(t, math.Min(math.Abs(delta)*0.5, 5), math.Abs(calls[1].Amount), 1e-9)
			assert.Equal(t, -sign(delta)*inv, sign(calls[1].Amount))
			assert.Equal(t, "key(ctrl,false)", calls[2].String())
			assert.False(t, dev.Held("ctrl"))
		}
	}
}

func TestZoomReleasesModifierWhenScrollFails(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())
	dev.FailOp("scroll")

	_, err := handle(t, d, protocol.Zoom{Delta: 4})
	assert.ErrorIs(t, err, inputtest.ErrInjected)

	assert.Equal(t, []string{"key(ctrl,true)", "scroll(vertical,-2)", "key(ctrl,false)"}, dev.Strings())
	assert.False(t, dev.Held("ctrl"))
}

func TestZoomReleasesModifierWhenPressFails(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())
	dev.FailKeyPress("ctrl")

	_, err := handle(t, d, protocol.Zoom{Delta: 4})
	assert.ErrorIs(t, err, inputtest.ErrInjected)
	assert.Equal(t, []string{"key(ctrl,true)", "key(ctrl,false)"}, dev.Strings())
}

func TestZoomZeroDeltaDoesNothing(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Zoom{Delta: 0})
	require.NoError(t, err)
	assert.Empty(t, dev.Calls())
}

func TestKeyMappedLiteralAndUnmapped(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Key{Key: "Enter"})
	require.NoError(t, err)
	_, err = handle(t, d, protocol.Key{Key: "A"})
	require.NoError(t, err)
	_, err = handle(t, d, protocol.Key{Key: "ü"})
	require.NoError(t, err)

	_, err = handle(t, d, protocol.Key{Key: "hyperdrive"})
	assert.ErrorIs(t, err, ErrUnmappedKey)

	assert.Equal(t, []string{`tap(enter)`, `type("A")`, `type("ü")`}, dev.Strings())
}

func TestTextIsVerbatim(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Text{Text: "Hello World!"})
	require.NoError(t, err)
	assert.Equal(t, []string{`type("Hello World!")`}, dev.Strings())
}

func TestComboPressesInOrderAndReleasesAll(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Combo{Keys: []string{"Control", "shift", "T"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"key(ctrl,true)", "key(shift,true)", "key(t,true)",
		"key(t,false)", "key(shift,false)", "key(ctrl,false)",
	}, dev.Strings())
	for _, k := range []string{"ctrl", "shift", "t"} {
		assert.False(t, dev.Held(k), k)
	}
}

func TestComboReleasesEvenWhenLaterPressFails(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())
	dev.FailKeyPress("c")

	_, err := handle(t, d, protocol.Combo{Keys: []string{"ctrl", "c"}})
	assert.ErrorIs(t, err, inputtest.ErrInjected)

	assert.Equal(t, []string{
		"key(ctrl,true)", "key(c,true)",
		"key(c,false)", "key(ctrl,false)",
	}, dev.Strings())
	assert.False(t, dev.Held("ctrl"))
	assert.False(t, dev.Held("c"))
}

func TestComboStopsPressingAfterFailure(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())
	dev.FailKeyPress("shift")

	_, err := handle(t, d, protocol.Combo{Keys: []string{"ctrl", "shift", "t"}})
	assert.Error(t, err)

	assert.Equal(t, []string{
		"key(ctrl,true)", "key(shift,true)",
		"key(shift,false)", "key(ctrl,false)",
	}, dev.Strings())
}

func TestComboWithUnmappedKeyPressesNothing(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.Combo{Keys: []string{"ctrl", "warpdrive"}})
	assert.ErrorIs(t, err, ErrUnmappedKey)
	assert.Empty(t, dev.Calls())
}

func TestUpdateConfigMergesAndReplies(t *testing.T) {
	d, dev, mgr := newTestDispatcher(t, config.Config{FrontendPort: 3000, MouseInvert: true, MouseSensitivity: 1.5})

	port := 9000
	resp, err := handle(t, d, protocol.UpdateConfig{Config: config.Patch{FrontendPort: &port}})
	require.NoError(t, err)

	want := config.Config{FrontendPort: 9000, MouseInvert: true, MouseSensitivity: 1.5}
	assert.Equal(t, want, mgr.Get())
	assert.Equal(t, protocol.ConfigUpdated{Config: want}, resp)
	assert.Empty(t, dev.Calls())
}

func TestUpdateConfigAffectsLaterMessages(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	sens := 3.0
	_, err := handle(t, d, protocol.UpdateConfig{Config: config.Patch{MouseSensitivity: &sens}})
	require.NoError(t, err)
	_, err = handle(t, d, protocol.Move{DX: 1, DY: -1})
	require.NoError(t, err)

	x, y := dev.Position()
	assert.Equal(t, 103, x)
	assert.Equal(t, 97, y)
}

func TestGetIPReplies(t *testing.T) {
	d, _, _ := newTestDispatcher(t, config.DefaultConfig())

	resp, err := handle(t, d, protocol.GetIP{})
	require.NoError(t, err)
	assert.Equal(t, protocol.ServerIP{IP: "192.168.1.42"}, resp)
}

func TestGetIPFailure(t *testing.T) {
	d := New(inputtest.NewRecorder(0, 0), config.NewMemoryManager(config.DefaultConfig()), Options{
		LocalIP: func() (string, error) { return "", errors.New("no route") },
	})

	resp, err := d.Handle(context.Background(), protocol.GetIP{})
	assert.Nil(t, resp)
	assert.Error(t, err)
}

func TestHostOnlyMessagesAreRejected(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	_, err := handle(t, d, protocol.ServerIP{IP: "1.2.3.4"})
	assert.ErrorIs(t, err, ErrUnexpected)
	_, err = handle(t, d, protocol.ConfigUpdated{Config: config.DefaultConfig()})
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Empty(t, dev.Calls())
}

func TestZoomAmount(t *testing.T) {
	assert.Equal(t, -1.5, zoomAmount(3, 1))
	assert.Equal(t, 1.5, zoomAmount(3, -1))
	assert.Equal(t, 5.0, zoomAmount(-100, 1))
	assert.Equal(t, -5.0, zoomAmount(-100, -1))
	assert.Equal(t, 0.0, zoomAmount(0, 1))
}

func TestRunPreservesOrderAndNeverOverlaps(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	var replies []protocol.Message
	var mu sync.Mutex
	reply := func(m protocol.Message) {
		mu.Lock()
		replies = append(replies, m)
		mu.Unlock()
	}

	msgs := []protocol.Message{
		protocol.Combo{Keys: []string{"ctrl", "c"}},
		protocol.Move{DX: 5, DY: 0},
		protocol.Zoom{Delta: 2},
		protocol.Text{Text: "x"},
		protocol.GetIP{},
	}
	for _, m := range msgs {
		require.NoError(t, d.Submit(context.Background(), m, reply))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replies) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []string{
		"key(ctrl,true)", "key(c,true)", "key(c,false)", "key(ctrl,false)",
		"move(105,100)",
		"key(ctrl,true)", "scroll(vertical,-1)", "key(ctrl,false)",
		`type("x")`,
	}, dev.Strings())
	assert.False(t, dev.Overlapped())
	assert.Equal(t, []protocol.Message{protocol.ServerIP{IP: "192.168.1.42"}}, replies)

	assert.ErrorIs(t, d.Submit(context.Background(), protocol.GetIP{}, nil), ErrStopped)
}

func TestConcurrentSubmittersNeverOverlap(t *testing.T) {
	d, dev, _ := newTestDispatcher(t, config.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = d.Submit(ctx, protocol.Combo{Keys: []string{"alt", "tab"}}, nil)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(dev.Calls()) == 8*25*4 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, dev.Overlapped())
	assert.False(t, dev.Held("alt"))
	assert.False(t, dev.Held("tab"))
}
