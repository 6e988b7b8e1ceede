package relay

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bigshanyao1/qwen-omni-proxy/config"
	"github.com/bigshanyao1/qwen-omni-proxy/metrics"
)

// sessionState tracks where a relay session is in its lifecycle.
type sessionState int32

const (
	stateConnecting sessionState = iota
	stateOpen
	stateErrored
	stateClosing
	stateTerminated
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateErrored:
		return "errored"
	case stateClosing:
		return "closing"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	evClientMessage eventKind = iota
	evClientClosed
	evUpstreamOpen
	evUpstreamMessage
	evUpstreamError
	evUpstreamClosed
	evRetryFlush
	evTerminate
)

// event is one unit of work for a session's event loop. gen identifies the
// upstream connection instance the event belongs to; events from a superseded
// instance are dropped.
type event struct {
	kind        eventKind
	gen         uint64
	messageType int
	data        []byte
	err         error
	code        int
	reason      string
	conn        *UpstreamConn
}

// Session pairs one client connection with one upstream connection and
// relays messages in both directions. All state transitions run on a single
// event-loop goroutine, so no two handlers for the same session execute
// concurrently; many sessions interleave freely.
type Session struct {
	ID    string
	Model string

	client *ClientConn
	dialer upstreamDialer

	// Owned by the event loop.
	upstream     *UpstreamConn
	upstreamGen  uint64
	upstreamUp   bool
	dialInFlight bool
	configurator *configurator
	buffer       pendingBuffer
	retryPending bool
	drops        int // consecutive upstream drops without a successful reconnect

	lastActivity atomic.Int64
	state        atomic.Int32
	// Mirrors the configurator's acknowledgment state for readers outside
	// the event loop.
	sessionConfigured atomic.Bool

	livenessInterval  time.Duration
	inactivityTimeout time.Duration
	configureGrace    time.Duration
	writeTimeout      time.Duration

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// onTerminate is invoked once, on the event loop, after teardown.
	onTerminate func(*Session)
}

// NewSession creates a relay session for an accepted client connection.
func NewSession(id, model string, clientConn wireConn, dialer upstreamDialer, cfg *config.RelayConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	writeTimeout := time.Duration(cfg.WriteTimeout) * time.Second
	s := &Session{
		ID:                id,
		Model:             model,
		client:            NewClientConn(clientConn, writeTimeout),
		dialer:            dialer,
		livenessInterval:  time.Duration(cfg.LivenessInterval) * time.Second,
		inactivityTimeout: time.Duration(cfg.InactivityTimeout) * time.Second,
		configureGrace:    time.Duration(cfg.ConfigureGrace) * time.Millisecond,
		writeTimeout:      writeTimeout,
		events:            make(chan event, cfg.EventQueueSize),
		ctx:               ctx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
	s.lastActivity.Store(time.Now().UnixNano())
	s.state.Store(int32(stateConnecting))
	return s
}

// Start launches the event loop and issues the initial upstream connect.
func (s *Session) Start() {
	go s.run()
}

// ClientMessage hands an inbound client frame to the session. Called from the
// handler's read loop; blocks when the event queue is full, which is the
// relay's natural backpressure on a fast client.
func (s *Session) ClientMessage(messageType int, data []byte) {
	s.post(event{kind: evClientMessage, messageType: messageType, data: data})
}

// ClientClosed signals that the client connection ended.
func (s *Session) ClientClosed() {
	s.post(event{kind: evClientClosed})
}

// Terminate requests teardown from outside the event loop, with the close
// code and reason propagated to both sides.
func (s *Session) Terminate(code int, reason string) {
	s.post(event{kind: evTerminate, code: code, reason: reason})
}

// PingClient sends a control ping on the client connection. Used by the
// manager's collection-wide reaper.
func (s *Session) PingClient(timeout time.Duration) error {
	return s.client.Ping(timeout)
}

// Done is closed once the session reaches the terminated state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Configured reports whether the current upstream instance has acknowledged
// the session configuration.
func (s *Session) Configured() bool {
	return s.sessionConfigured.Load()
}

// State returns the session's current lifecycle state.
func (s *Session) State() sessionState {
	return sessionState(s.state.Load())
}

// LastActivity returns the time of the last message seen on either side.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) setState(st sessionState) {
	s.state.Store(int32(st))
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// post delivers an event to the loop, dropping it if the session is gone.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) run() {
	defer close(s.done)

	s.startConnect()

	ticker := time.NewTicker(s.livenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ev)
		case <-ticker.C:
			s.onLivenessTick()
		}
		if s.State() == stateTerminated {
			return
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evClientMessage:
		s.onClientMessage(ev.messageType, ev.data)
	case evClientClosed:
		s.teardown(websocket.CloseNormalClosure, "client disconnected")
	case evUpstreamOpen:
		s.onUpstreamOpen(ev)
	case evUpstreamMessage:
		s.onUpstreamMessage(ev)
	case evUpstreamError:
		s.onUpstreamError(ev)
	case evUpstreamClosed:
		s.onUpstreamClosed(ev)
	case evRetryFlush:
		s.retryPending = false
		s.flush()
	case evTerminate:
		s.teardown(ev.code, ev.reason)
	}
}

// startConnect issues one asynchronous upstream connect attempt for a new
// connection instance. The prior instance, if any, is already closed by the
// time this runs.
func (s *Session) startConnect() {
	if s.dialInFlight {
		return
	}
	s.dialInFlight = true
	s.upstreamGen++
	gen := s.upstreamGen

	go func() {
		conn, err := s.dialer.Connect(s.Model)
		if err != nil {
			s.post(event{kind: evUpstreamError, gen: gen, err: err})
			s.post(event{kind: evUpstreamClosed, gen: gen, code: websocket.CloseAbnormalClosure, reason: "connect failed"})
			return
		}
		select {
		case s.events <- event{kind: evUpstreamOpen, gen: gen, conn: conn}:
		case <-s.ctx.Done():
			conn.Close()
		}
	}()
}

func (s *Session) onClientMessage(messageType int, data []byte) {
	s.touch()
	metrics.ClientMessages.Inc()

	msgType, parsed := sniffType(data)
	if messageType == websocket.TextMessage && !parsed {
		// The relay is not the payload validator: log and pass through.
		log.Printf("Session %s: unparseable client payload (%d bytes), forwarding as-is", s.ID, len(data))
	}

	switch {
	case !s.upstreamUp:
		// Upstream not ready yet: queue, never drop.
		s.buffer.enqueue(messageType, data)
		metrics.BufferedMessages.Inc()
	case !s.configurator.configured() && msgType != typeSessionUpdate:
		// Post-open grace window: the upstream has not acknowledged the
		// session configuration, so hold non-configuration traffic and
		// schedule one deferred retry.
		s.buffer.enqueue(messageType, data)
		metrics.BufferedMessages.Inc()
		s.scheduleRetryFlush()
	case s.buffer.len() > 0:
		// Preserve FIFO across the buffer-to-live transition.
		s.buffer.enqueue(messageType, data)
		s.flush()
	default:
		if err := s.upstream.WriteMessage(messageType, data); err != nil {
			log.Printf("Session %s: upstream write failed, re-queueing: %v", s.ID, err)
			s.buffer.enqueue(messageType, data)
		}
	}
}

func (s *Session) onUpstreamOpen(ev event) {
	if ev.gen != s.upstreamGen {
		ev.conn.Close() // stale dial result
		return
	}
	s.dialInFlight = false
	s.upstream = ev.conn
	s.upstreamUp = true
	s.drops = 0
	s.configurator = newConfigurator()
	s.sessionConfigured.Store(false)
	s.setState(stateOpen)
	s.touch()
	metrics.UpstreamConnects.Inc()
	log.Printf("Session %s: upstream connected (model=%s)", s.ID, s.Model)

	if err := s.client.WriteJSON(newProxyConnected("Connected to Qwen Omni realtime API")); err != nil {
		log.Printf("Session %s: failed to notify client of upstream open: %v", s.ID, err)
	}

	if err := s.configurator.configure(s.upstream); err != nil {
		log.Printf("Session %s: session configuration send failed: %v", s.ID, err)
	}

	go s.readUpstream(ev.gen, ev.conn)

	// Buffered pre-open messages flush right after the configuration send.
	s.flush()
}

func (s *Session) onUpstreamMessage(ev event) {
	if ev.gen != s.upstreamGen {
		return
	}
	s.touch()
	metrics.UpstreamMessages.Inc()

	if msgType, _ := sniffType(ev.data); msgType == typeSessionUpdated && s.configurator != nil {
		if s.configurator.acknowledge() {
			s.sessionConfigured.Store(true)
			metrics.SessionsConfigured.Inc()
			log.Printf("Session %s: upstream acknowledged session configuration", s.ID)
			s.flush()
		}
	}

	if err := s.client.WriteMessage(ev.messageType, ev.data); err != nil {
		log.Printf("Session %s: client write failed: %v", s.ID, err)
		s.teardown(websocket.CloseInternalServerErr, "client write failed")
	}
}

func (s *Session) onUpstreamError(ev event) {
	if ev.gen != s.upstreamGen {
		return
	}
	kind := Classify(ev.err)
	metrics.UpstreamErrors.WithLabelValues(kind.String()).Inc()
	log.Printf("Session %s: upstream error (%s): %v", s.ID, kind, ev.err)
	s.setState(stateErrored)

	// The raw error never reaches the client; only the classified kind does.
	if err := s.client.WriteJSON(newErrorPayload(kind.clientCode(), kind.clientMessage())); err != nil {
		log.Printf("Session %s: failed to forward error to client: %v", s.ID, err)
	}
}

func (s *Session) onUpstreamClosed(ev event) {
	if ev.gen != s.upstreamGen {
		return
	}
	s.dialInFlight = false
	wasUp := s.upstreamUp
	s.upstreamUp = false
	s.configurator = nil
	s.sessionConfigured.Store(false)
	if s.upstream != nil {
		s.upstream.Close()
		s.upstream = nil
	}
	s.drops++

	if wasUp {
		metrics.UpstreamErrors.WithLabelValues(KindUnexpectedClose.String()).Inc()
		log.Printf("Session %s: upstream closed (code=%d reason=%q)", s.ID, ev.code, ev.reason)
	}

	if s.drops >= 2 {
		// Second consecutive drop without a successful reconnect: give up.
		if err := s.client.WriteJSON(newErrorPayload(CodeNotReady, KindUnexpectedClose.clientMessage())); err != nil {
			log.Printf("Session %s: failed to notify client of upstream loss: %v", s.ID, err)
		}
		s.teardown(websocket.CloseTryAgainLater, "upstream unavailable")
		return
	}

	s.setState(stateConnecting)
	if wasUp {
		if err := s.client.WriteJSON(newSystemInfo("Upstream connection lost; reconnecting")); err != nil {
			log.Printf("Session %s: failed to notify client of reconnect: %v", s.ID, err)
		}
	}
	// Reconnect is issued by the liveness monitor, never from here.
}

// flush drains the pending buffer into the upstream in FIFO order. A write
// failure stops the drain without discarding the remainder.
func (s *Session) flush() {
	if !s.upstreamUp || s.buffer.len() == 0 {
		return
	}
	sent, err := s.buffer.drainInto(s.upstream)
	if sent > 0 {
		log.Printf("Session %s: flushed %d buffered message(s)", s.ID, sent)
	}
	if err != nil {
		log.Printf("Session %s: flush interrupted with %d message(s) still queued: %v", s.ID, s.buffer.len(), err)
	}
}

// scheduleRetryFlush arms a single deferred flush for the post-open grace
// window. The delayed messages are sent after the grace delay even if the
// configuration acknowledgment is still outstanding.
func (s *Session) scheduleRetryFlush() {
	if s.retryPending {
		return
	}
	s.retryPending = true
	time.AfterFunc(s.configureGrace, func() {
		s.post(event{kind: evRetryFlush})
	})
}

// readUpstream pumps inbound upstream frames into the event loop until the
// connection dies.
func (s *Session) readUpstream(gen uint64, u *UpstreamConn) {
	for {
		messageType, data, err := u.conn.ReadMessage()
		if err != nil {
			if u.closed.Load() {
				// The session closed this instance itself.
				return
			}
			if closeErr, ok := err.(*websocket.CloseError); ok {
				s.post(event{kind: evUpstreamClosed, gen: gen, code: closeErr.Code, reason: closeErr.Text})
			} else {
				s.post(event{kind: evUpstreamError, gen: gen, err: err})
				s.post(event{kind: evUpstreamClosed, gen: gen, code: websocket.CloseAbnormalClosure, reason: "read error"})
			}
			return
		}
		s.post(event{kind: evUpstreamMessage, gen: gen, messageType: messageType, data: data})
	}
}

// teardown closes both sides, discards pending state, and cancels all timers.
// Idempotent; the first call wins.
func (s *Session) teardown(code int, reason string) {
	if s.State() == stateTerminated {
		return
	}
	s.setState(stateClosing)
	log.Printf("Session %s: closing (code=%d reason=%q)", s.ID, code, reason)

	if s.upstream != nil {
		s.upstream.CloseWithReason(code, reason, s.writeTimeout)
		s.upstream = nil
	}
	s.upstreamUp = false
	s.configurator = nil
	s.sessionConfigured.Store(false)
	s.buffer.discard()

	if err := s.client.CloseWithReason(code, reason); err != nil {
		log.Printf("Session %s: client close: %v", s.ID, err)
	}

	s.setState(stateTerminated)
	s.cancel()
	if s.onTerminate != nil {
		s.onTerminate(s)
	}
}
