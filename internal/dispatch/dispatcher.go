// Package dispatch turns decoded relay messages into OS input, one at a time.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rein/internal/config"
	"rein/internal/input"
	"rein/internal/metrics"
	"rein/internal/protocol"
)

const (
	// ZoomScale scales a zoom delta into scroll ticks
	ZoomScale = 0.5

	// MaxZoomStep caps the scroll emitted for one zoom message
	MaxZoomStep = 5.0

	// MaxMoveStep bounds one scaled pointer offset in pixels per axis
	MaxMoveStep = math.MaxInt32

	defaultQueueSize = 256
)

var (
	// ErrUnmappedKey is returned for multi-character key names missing from the key table
	ErrUnmappedKey = errors.New("unmapped key")

	// ErrUnexpected is returned for message types only the host sends
	ErrUnexpected = errors.New("unexpected message for host")

	// ErrStopped is returned by Submit once Run has exited
	ErrStopped = errors.New("dispatcher stopped")
)

// Reply delivers a response message back to the originating connection
type Reply func(protocol.Message)

// Options tunes a Dispatcher. Zero values select defaults.
type Options struct {
	// LocalIP resolves the address reported for get-ip
	LocalIP func() (string, error)

	// Metrics may be nil
	Metrics *metrics.Recorder

	// QueueSize bounds the number of messages waiting for the device
	QueueSize int

	// ZoomModifier overrides input.ZoomModifier()
	ZoomModifier string
}

type job struct {
	ctx   context.Context
	msg   protocol.Message
	reply Reply
}

// Dispatcher owns the OS device. Messages submitted from any goroutine are
// executed by Run strictly in submission order, never overlapping.
type Dispatcher struct {
	device   input.Device
	cfg      *config.Manager
	localIP  func() (string, error)
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	modifier string

	queue   chan job
	stopped chan struct{}
}

// New creates a dispatcher bound to device and cfg
func New(device input.Device, cfg *config.Manager, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.ZoomModifier == "" {
		opts.ZoomModifier = input.ZoomModifier()
	}
	if opts.LocalIP == nil {
		opts.LocalIP = func() (string, error) { return "", errors.New("local address lookup not configured") }
	}

	return &Dispatcher{
		device:   device,
		cfg:      cfg,
		localIP:  opts.LocalIP,
		metrics:  opts.Metrics,
		tracer:   otel.Tracer("rein/dispatch"),
		modifier: opts.ZoomModifier,
		queue:    make(chan job, opts.QueueSize),
		stopped:  make(chan struct{}),
	}
}

// Submit queues msg for execution. It blocks while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, msg protocol.Message, reply Reply) error {
	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}

	select {
	case d.queue <- job{ctx: ctx, msg: msg, reply: reply}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
}

// Run executes queued messages until ctx is cancelled. A message already
// started runs to completion, including any key release.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)

	log.Println("Dispatch: Running")
	for {
		select {
		case <-ctx.Done():
			log.Println("Dispatch: Stopped")
			return ctx.Err()
		case j := <-d.queue:
			d.execute(j)
		}
	}
}

func (d *Dispatcher) execute(j job) {
	resp, err := d.Handle(j.ctx, j.msg)
	if err != nil {
		log.Printf("Dispatch: %s dropped: %v", j.msg.Type(), err)
	}
	if resp != nil && j.reply != nil {
		j.reply(resp)
	}
}

// Handle executes one message against the device and returns the reply to
// send, if any. Callers other than Run must not overlap calls.
func (d *Dispatcher) Handle(ctx context.Context, msg protocol.Message) (resp protocol.Message, err error) {
	msgType := string(msg.Type())
	_, span := d.tracer.Start(ctx, "dispatch "+msgType,
		trace.WithAttributes(attribute.String("rein.message.type", msgType)))
	start := time.Now()

	defer func() {
		d.metrics.ObserveDispatch(msgType, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, ErrUnmappedKey) {
				d.metrics.Dropped(metrics.ReasonUnmapped)
			} else {
				d.metrics.DispatchError(msgType)
			}
		}
		span.End()
	}()

	d.metrics.Message(msgType)

	switch m := msg.(type) {
	case protocol.Move:
		return nil, d.move(m)
	case protocol.Click:
		return nil, d.click(m)
	case protocol.Scroll:
		return nil, d.scroll(m)
	case protocol.Zoom:
		return nil, d.zoom(m)
	case protocol.Key:
		return nil, d.key(m)
	case protocol.Text:
		return nil, d.text(m)
	case protocol.Combo:
		return nil, d.combo(m)
	case protocol.UpdateConfig:
		return d.updateConfig(m)
	case protocol.GetIP:
		return d.getIP()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpected, msgType)
	}
}

func (d *Dispatcher) move(m protocol.Move) error {
	x, y, err := d.device.Location()
	if err != nil {
		return fmt.Errorf("read pointer: %w", err)
	}

	s := d.cfg.Get().MouseSensitivity
	if s <= 0 {
		s = config.DefaultSensitivity
	}

	nx := x + moveOffset(m.DX, s)
	ny := y + moveOffset(m.DY, s)
	if err := d.device.MoveTo(nx, ny); err != nil {
		return fmt.Errorf("move pointer: %w", err)
	}
	return nil
}

// moveOffset scales a delta and clamps it to MaxMoveStep before the int
// conversion, which is undefined for out-of-range floats.
func moveOffset(delta, sensitivity float64) int {
	v := math.Round(delta * sensitivity)
	switch {
	case math.IsNaN(v):
		return 0
	case v > MaxMoveStep:
		return MaxMoveStep
	case v < -MaxMoveStep:
		return -MaxMoveStep
	}
	return int(v)
}

func (d *Dispatcher) click(m protocol.Click) error {
	var btn input.Button
	switch m.Button {
	case protocol.ButtonLeft:
		btn = input.ButtonLeft
	case protocol.ButtonRight:
		btn = input.ButtonRight
	case protocol.ButtonMiddle:
		btn = input.ButtonMiddle
	default:
		return fmt.Errorf("unknown button %q", m.Button)
	}
	return d.device.Toggle(btn, m.Press)
}

func (d *Dispatcher) scroll(m protocol.Scroll) error {
	inv := d.cfg.Get().InvertMultiplier()

	var errs []error
	if m.DY != 0 {
		if err := d.device.Scroll(input.Vertical, m.DY*inv); err != nil {
			errs = append(errs, fmt.Errorf("vertical scroll: %w", err))
		}
	}
	// horizontal is pre-inverted relative to vertical
	if m.DX != 0 {
		if err := d.device.Scroll(input.Horizontal, m.DX*-1*inv); err != nil {
			errs = append(errs, fmt.Errorf("horizontal scroll: %w", err))
		}
	}
	return errors.Join(errs...)
}

// zoomAmount returns the vertical scroll emitted for a zoom delta. A zero
// delta yields 0 and zoom skips it entirely, so the modifier is neither
// pressed nor released for it.
func zoomAmount(delta, inv float64) float64 {
	if delta == 0 {
		return 0
	}
	amount := math.Min(math.Abs(delta)*ZoomScale, MaxZoomStep)
	sign := 1.0
	if delta < 0 {
		sign = -1
	}
	return -sign * amount * inv
}

func (d *Dispatcher) zoom(m protocol.Zoom) (err error) {
	amount := zoomAmount(m.Delta, d.cfg.Get().InvertMultiplier())
	if amount == 0 {
		return nil
	}

	pressErr := d.device.KeyToggle(d.modifier, true)
	defer func() {
		if relErr := d.device.KeyToggle(d.modifier, false); relErr != nil {
			err = errors.Join(err, fmt.Errorf("release %s: %w", d.modifier, relErr))
		}
	}()
	if pressErr != nil {
		return fmt.Errorf("press %s: %w", d.modifier, pressErr)
	}

	if err := d.device.Scroll(input.Vertical, amount); err != nil {
		return fmt.Errorf("zoom scroll: %w", err)
	}
	return nil
}

func (d *Dispatcher) key(m protocol.Key) error {
	log.Printf("Dispatch: Processing key: %s", m.Key)

	if k, ok := input.Lookup(m.Key); ok {
		return d.device.KeyTap(k)
	}
	if utf8.RuneCountInString(m.Key) == 1 {
		return d.device.TypeText(m.Key)
	}
	return fmt.Errorf("%w: %q", ErrUnmappedKey, m.Key)
}

func (d *Dispatcher) text(m protocol.Text) error {
	return d.device.TypeText(m.Text)
}

// resolveComboKey maps a combo entry to a device key name
func resolveComboKey(name string) (string, bool) {
	if k, ok := input.Lookup(name); ok {
		return k, true
	}
	if utf8.RuneCountInString(name) == 1 {
		return strings.ToLower(name), true
	}
	return "", false
}

func (d *Dispatcher) combo(m protocol.Combo) error {
	keys := make([]string, 0, len(m.Keys))
	for _, name := range m.Keys {
		k, ok := resolveComboKey(name)
		if !ok {
			return fmt.Errorf("%w: %q in combo", ErrUnmappedKey, name)
		}
		keys = append(keys, k)
	}

	var errs []error
	attempted := 0
	for _, k := range keys {
		attempted++
		if err := d.device.KeyToggle(k, true); err != nil {
			errs = append(errs, fmt.Errorf("press %s: %w", k, err))
			break
		}
	}

	// release everything whose press was attempted, even after a failure
	for i := attempted - 1; i >= 0; i-- {
		if err := d.device.KeyToggle(keys[i], false); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", keys[i], err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) updateConfig(m protocol.UpdateConfig) (protocol.Message, error) {
	old, updated, err := d.cfg.Apply(m.Config)
	if err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}

	if err := d.cfg.Save(); err != nil {
		log.Printf("Dispatch: Failed to persist config: %v", err)
	}

	if old.FrontendPort != updated.FrontendPort {
		log.Printf("Dispatch: frontendPort changed %d -> %d, restart the host to listen on the new port",
			old.FrontendPort, updated.FrontendPort)
	}

	return protocol.ConfigUpdated{Config: updated}, nil
}

func (d *Dispatcher) getIP() (protocol.Message, error) {
	ip, err := d.localIP()
	if err != nil {
		return nil, fmt.Errorf("resolve local address: %w", err)
	}
	return protocol.ServerIP{IP: ip}, nil
}
