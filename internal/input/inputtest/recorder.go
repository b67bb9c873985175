// Package inputtest provides a recording input.Device for tests.
package inputtest

import (
	"errors"
	"fmt"
	"sync"

	"rein/internal/input"
)

// ErrInjected is returned by calls configured to fail
var ErrInjected = errors.New("inputtest: injected failure")

// Call is one recorded device operation
type Call struct {
	Op     string
	Key    string
	Button input.Button
	Axis   input.Axis
	Amount float64
	X, Y   int
	Down   bool
}

func (c Call) String() string {
	switch c.Op {
	case "move":
		return fmt.Sprintf("move(%d,%d)", c.X, c.Y)
	case "toggle":
		return fmt.Sprintf("toggle(%s,%v)", c.Button, c.Down)
	case "scroll":
		return fmt.Sprintf("scroll(%s,%v)", c.Axis, c.Amount)
	case "key":
		return fmt.Sprintf("key(%s,%v)", c.Key, c.Down)
	case "tap":
		return fmt.Sprintf("tap(%s)", c.Key)
	case "type":
		return fmt.Sprintf("type(%q)", c.Key)
	}
	return c.Op
}

// Recorder is an input.Device that records calls and tracks held keys and
// buttons. The pointer starts at the configured position.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	x, y     int
	held     map[string]int
	buttons  map[input.Button]bool
	failKey  map[string]bool
	failOps  map[string]bool
	inFlight int
	overlap  bool
}

// NewRecorder returns a recorder whose pointer sits at (x, y)
func NewRecorder(x, y int) *Recorder {
	return &Recorder{
		x:       x,
		y:       y,
		held:    make(map[string]int),
		buttons: make(map[input.Button]bool),
		failKey: make(map[string]bool),
		failOps: make(map[string]bool),
	}
}

// FailKeyPress makes KeyToggle(key, true) fail
func (r *Recorder) FailKeyPress(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failKey[key] = true
}

// FailOp makes every call of op fail ("move", "scroll", "tap", ...)
func (r *Recorder) FailOp(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOps[op] = true
}

// Calls returns a copy of the recorded calls
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Strings returns the recorded calls in their String form
func (r *Recorder) Strings() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Position returns the pointer position
func (r *Recorder) Position() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.x, r.y
}

// Held reports whether key is currently pressed
func (r *Recorder) Held(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[key] > 0
}

// ButtonDown reports whether btn is currently pressed
func (r *Recorder) ButtonDown(btn input.Button) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buttons[btn]
}

// Overlapped reports whether two calls were ever in flight at once
func (r *Recorder) Overlapped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlap
}

func (r *Recorder) enter(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight++
	if r.inFlight > 1 {
		r.overlap = true
	}
	r.calls = append(r.calls, c)
	if r.failOps[c.Op] {
		return ErrInjected
	}
	return nil
}

func (r *Recorder) exit() {
	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
}

func (r *Recorder) Location() (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOps["location"] {
		return 0, 0, ErrInjected
	}
	return r.x, r.y, nil
}

func (r *Recorder) MoveTo(x, y int) error {
	defer r.exit()
	if err := r.enter(Call{Op: "move", X: x, Y: y}); err != nil {
		return err
	}
	r.mu.Lock()
	r.x, r.y = x, y
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Toggle(btn input.Button, down bool) error {
	defer r.exit()
	if err := r.enter(Call{Op: "toggle", Button: btn, Down: down}); err != nil {
		return err
	}
	r.mu.Lock()
	r.buttons[btn] = down
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Scroll(axis input.Axis, amount float64) error {
	defer r.exit()
	return r.enter(Call{Op: "scroll", Axis: axis, Amount: amount})
}

func (r *Recorder) KeyToggle(key string, down bool) error {
	defer r.exit()
	if err := r.enter(Call{Op: "key", Key: key, Down: down}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if down && r.failKey[key] {
		return ErrInjected
	}
	if down {
		r.held[key]++
	} else if r.held[key] > 0 {
		r.held[key]--
	}
	return nil
}

func (r *Recorder) KeyTap(key string) error {
	defer r.exit()
	return r.enter(Call{Op: "tap", Key: key})
}

func (r *Recorder) TypeText(text string) error {
	defer r.exit()
	return r.enter(Call{Op: "type", Key: text})
}
