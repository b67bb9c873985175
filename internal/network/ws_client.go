package network

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"rein/internal/protocol"
)

// DefaultReconnectDelay is the fixed wait between a close and the next attempt
const DefaultReconnectDelay = 3 * time.Second

// State is the client's view of its one logical connection
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options configures a Conn. Zero values select defaults.
type Options struct {
	// Dialer defaults to WebSocketDialer{}
	Dialer Dialer

	// Secure selects wss://
	Secure bool

	// ReconnectDelay defaults to DefaultReconnectDelay
	ReconnectDelay time.Duration

	// StartDelay defers the first connect after Start
	StartDelay time.Duration

	// OnState is called on every state transition, from the Conn's loop goroutine
	OnState func(State)

	// OnMessage receives valid inbound messages in arrival order, from the loop goroutine
	OnMessage func(protocol.Message)
}

// Conn owns at most one live transport to the host at /ws. It reconnects
// forever with a fixed delay and drops sends while not connected.
type Conn struct {
	opts Options

	events   chan any
	quit     chan struct{}
	startOne sync.Once
	stopOne  sync.Once

	// mu guards state, transport and addr for readers outside the loop;
	// only the loop assigns them.
	mu        sync.Mutex
	state     State
	transport Transport
	addr      string
}

// loop events, tagged with the transport generation they belong to
type (
	evTimer struct{ gen uint64 }
	evOpened struct {
		gen uint64
		t   Transport
	}
	evFrame struct {
		gen  uint64
		data []byte
	}
	evClosed struct {
		gen uint64
		err error
	}
	evRetarget struct{ addr string }
	evTeardown struct{}
)

// NewConn creates a connection manager for the host at addr (host:port)
func NewConn(addr string, opts Options) *Conn {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}

	return &Conn{
		opts:   opts,
		events: make(chan any, 16),
		quit:   make(chan struct{}),
		state:  Disconnected,
		addr:   addr,
	}
}

// Start begins the connection loop. The first connect is deferred by
// StartDelay so an immediate Teardown creates no socket.
func (c *Conn) Start() {
	c.startOne.Do(func() {
		go c.loop()
	})
}

// Teardown stops the loop, cancels any pending reconnect and closes the
// transport. No callbacks fire after it returns. It must not be called from
// OnState or OnMessage.
func (c *Conn) Teardown() {
	c.stopOne.Do(func() {
		started := true
		c.startOne.Do(func() {
			started = false
			close(c.quit)
		})
		if started {
			c.post(evTeardown{})
			<-c.quit
		}
	})
}

// Retarget points the connection at a new host address and reconnects now
func (c *Conn) Retarget(addr string) {
	c.post(evRetarget{addr: addr})
}

// State returns the current connection state
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Addr returns the host address currently targeted
func (c *Conn) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Send writes msg if connected and reports whether it was written. Messages
// sent while not connected are dropped, never queued. A write failure
// force-closes the transport, which leads to the normal reconnect.
func (c *Conn) Send(msg protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Printf("Conn: Encode error: %v", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected || c.transport == nil {
		return false
	}
	if err := c.transport.WriteMessage(data); err != nil {
		log.Printf("Conn: Write error: %v", err)
		c.transport.Close()
		return false
	}
	return true
}

// post hands an event to the loop; it reports false once the loop is gone
func (c *Conn) post(ev any) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.quit:
		return false
	}
}

type loopState struct {
	gen        uint64
	timer      *time.Timer
	cancelDial context.CancelFunc
}

func (c *Conn) loop() {
	defer close(c.quit)

	ls := &loopState{}
	ls.timer = time.AfterFunc(c.opts.StartDelay, func() { c.post(evTimer{gen: 0}) })

	for ev := range c.events {
		switch e := ev.(type) {
		case evTimer:
			if e.gen == ls.gen && c.State() == Disconnected {
				c.connect(ls)
			}

		case evOpened:
			if e.gen != ls.gen {
				e.t.Close()
				continue
			}
			ls.cancelDial = nil
			c.setTransport(e.t)
			c.setState(Connected)
			log.Printf("Conn: Connected to %s", c.Addr())
			go c.readPump(e.gen, e.t)

		case evFrame:
			if e.gen != ls.gen {
				continue
			}
			msg, err := protocol.Decode(e.data)
			if err != nil {
				log.Printf("Conn: Dropping frame: %v", err)
				continue
			}
			if c.opts.OnMessage != nil {
				c.opts.OnMessage(msg)
			}

		case evClosed:
			if e.gen != ls.gen {
				continue
			}
			if e.err != nil {
				log.Printf("Conn: Connection closed: %v", e.err)
			}
			ls.cancelDial = nil
			if t := c.setTransport(nil); t != nil {
				t.Close()
			}
			c.setState(Disconnected)

			gen := ls.gen
			ls.timer = time.AfterFunc(c.opts.ReconnectDelay, func() { c.post(evTimer{gen: gen}) })

		case evRetarget:
			c.mu.Lock()
			c.addr = e.addr
			c.mu.Unlock()
			log.Printf("Conn: Retargeting to %s", e.addr)
			c.connect(ls)

		case evTeardown:
			c.detach(ls)
			log.Println("Conn: Torn down")
			return
		}
	}
}

// detach invalidates every event of the current generation, stops the
// pending timer and dial, and closes the transport without a state change.
func (c *Conn) detach(ls *loopState) {
	ls.gen++
	if ls.timer != nil {
		ls.timer.Stop()
		ls.timer = nil
	}
	if ls.cancelDial != nil {
		ls.cancelDial()
		ls.cancelDial = nil
	}
	if t := c.setTransport(nil); t != nil {
		t.Close()
	}
}

func (c *Conn) connect(ls *loopState) {
	c.detach(ls)

	addr := c.Addr()
	scheme := "ws"
	if c.opts.Secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: addr, Path: "/ws"}

	log.Printf("Conn: Connecting to %s", u.String())
	c.setState(Connecting)

	ctx, cancel := context.WithCancel(context.Background())
	ls.cancelDial = cancel
	gen := ls.gen

	go func() {
		defer cancel()
		t, err := c.opts.Dialer.Dial(ctx, u.String())
		if err != nil {
			c.post(evClosed{gen: gen, err: err})
			return
		}
		if !c.post(evOpened{gen: gen, t: t}) {
			t.Close()
		}
	}()
}

func (c *Conn) readPump(gen uint64, t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			c.post(evClosed{gen: gen, err: err})
			return
		}
		if !c.post(evFrame{gen: gen, data: data}) {
			return
		}
	}
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// setTransport swaps the current transport and returns the previous one
func (c *Conn) setTransport(t Transport) Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.transport
	c.transport = t
	return old
}
