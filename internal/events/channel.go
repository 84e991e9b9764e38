// Package events maintains the authenticated realtime channel that streams
// job updates from the backend, with bounded auto-reconnect and per-job
// subscription multiplexing.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"forgesync/internal/config"
	"forgesync/internal/logging"
)

// UpdateFunc receives the raw job_update frame for a subscribed job.
type UpdateFunc func(update json.RawMessage)

// StateFunc observes channel state transitions.
type StateFunc func(Snapshot)

type outFrame struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	JobID string `json:"jobId,omitempty"`
}

// Channel owns one realtime connection. Subscriptions registered before the
// first connect, or while a reconnect is in progress, are flushed on every
// successful connect, so deferred sends and post-reconnect re-subscribes are
// the same mechanism.
type Channel struct {
	endpoint string
	token    string
	dialer   Dialer
	policy   reconnectPolicy
	logger   *slog.Logger
	rnd      *rand.Rand

	mu        sync.Mutex
	wmu       sync.Mutex
	snapshot  Snapshot
	stateCB   StateFunc
	subs      map[string]map[int]UpdateFunc
	nextSubID int
	conn      Conn
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
	closed    bool
}

// New builds a channel for the configured backend. The token should come
// from ResolveToken; an empty token makes Start settle in missing-token
// without dialing.
func New(cfg *config.Config, token string, dialer Dialer, logger *slog.Logger) (*Channel, error) {
	endpoint, err := EndpointFromBaseURL(cfg.Backend.BaseURL)
	if err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = NewDialer(time.Duration(cfg.Socket.HandshakeTimeout) * time.Second)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Channel{
		endpoint: endpoint,
		token:    token,
		dialer:   dialer,
		policy: reconnectPolicy{
			maxAttempts:   cfg.Socket.MaxReconnectAttempts,
			baseDelay:     time.Duration(cfg.Socket.ReconnectDelay * float64(time.Second)),
			maxDelay:      time.Duration(cfg.Socket.ReconnectDelayMax * float64(time.Second)),
			randomization: cfg.Socket.RandomizationFactor,
		},
		logger:   logger.With(logging.String(logging.FieldComponent, "events")),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		snapshot: Snapshot{State: StateDisconnected},
		subs:     make(map[string]map[int]UpdateFunc),
		done:     make(chan struct{}),
	}, nil
}

// OnStateChange registers the state observer. Must be set before Start.
func (c *Channel) OnStateChange(fn StateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateCB = fn
}

// Snapshot returns the current connection state.
func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Start begins the connect/reconnect loop. Without a token the channel
// settles in missing-token and never dials.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	if c.token == "" {
		c.mu.Unlock()
		c.setState(Snapshot{State: StateMissingToken, LastError: "no socket token configured"})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
}

// SubscribeToJob registers a callback for job_update frames matching jobID.
// When the channel is connected the subscribe frame is sent immediately;
// otherwise it is deferred to the next successful connect. The returned
// function removes only this binding.
func (c *Channel) SubscribeToJob(jobID string, fn UpdateFunc) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	bindings, known := c.subs[jobID]
	if !known {
		bindings = make(map[int]UpdateFunc)
		c.subs[jobID] = bindings
	}
	bindings[id] = fn
	conn := c.conn
	connected := c.snapshot.State == StateConnected
	c.mu.Unlock()

	// First subscriber for a job announces it; later subscribers share the
	// existing server-side subscription.
	if !known && connected && conn != nil {
		if err := c.writeFrame(conn, outFrame{Type: "subscribe_job", JobID: jobID}); err != nil {
			c.logger.Warn("subscribe frame failed; will resend on reconnect",
				logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if bindings, ok := c.subs[jobID]; ok {
			delete(bindings, id)
			if len(bindings) == 0 {
				delete(c.subs, jobID)
			}
		}
	}
}

// Close tears the channel down. No callback fires after Close returns.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	cancel := c.cancel
	started := c.started
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if started {
		<-c.done
	}

	c.mu.Lock()
	c.snapshot = Snapshot{State: StateDisconnected}
	c.mu.Unlock()
	return nil
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if attempt == 0 {
			c.setState(Snapshot{State: StateConnecting})
		}

		conn, err := c.dialer.DialContext(ctx, c.endpoint)
		if err == nil {
			err = c.handshake(conn)
			if err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			if attempt > c.policy.maxAttempts {
				c.logger.Error("reconnect budget exhausted",
					logging.Int(logging.FieldAttempt, attempt-1), logging.Error(err))
				c.setState(Snapshot{State: StateFailed, RetryAttempt: attempt - 1, LastError: err.Error()})
				return
			}
			delay := c.policy.jitteredDelay(attempt, c.rnd)
			c.logger.Warn("connect failed; retrying",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration("delay", delay),
				logging.Error(err))
			c.setState(Snapshot{State: StateReconnecting, RetryAttempt: attempt, LastError: err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.setConn(conn)
		c.setState(Snapshot{State: StateConnected})
		c.logger.Info("channel connected")

		readErr := c.readLoop(conn)
		c.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		if c.Snapshot().State == StateError {
			return
		}

		attempt = 1
		lastError := ""
		if readErr != nil {
			lastError = readErr.Error()
		}
		c.logger.Warn("channel dropped; reconnecting", logging.Error(readErr))
		c.setState(Snapshot{State: StateReconnecting, RetryAttempt: attempt, LastError: lastError})
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.policy.jitteredDelay(attempt, c.rnd)):
		}
	}
}

// handshake authenticates and flushes the subscription registry. Running it
// on every connect makes pre-connect and post-reconnect subscriptions
// indistinguishable.
func (c *Channel) handshake(conn Conn) error {
	if err := c.writeFrame(conn, outFrame{Type: "auth", Token: c.token}); err != nil {
		return err
	}
	for _, jobID := range c.subscribedJobs() {
		if err := c.writeFrame(conn, outFrame{Type: "subscribe_job", JobID: jobID}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) readLoop(conn Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	var env struct {
		Type     string `json:"type"`
		JobID    string `json:"jobId"`
		JobIDAlt string `json:"job_id"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("discarding unparseable frame", logging.Error(err))
		return
	}

	switch env.Type {
	case "job_update":
	case "error":
		c.handleServerError(env.Message)
		return
	default:
		return
	}

	jobID := env.JobID
	if jobID == "" {
		jobID = env.JobIDAlt
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var callbacks []UpdateFunc
	if jobID == "" {
		// No id means the frame is a broadcast; deliver to every subscriber.
		for _, bindings := range c.subs {
			for _, fn := range bindings {
				callbacks = append(callbacks, fn)
			}
		}
	} else {
		for _, fn := range c.subs[jobID] {
			callbacks = append(callbacks, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(json.RawMessage(data))
	}
}

// handleServerError reacts to an explicit error frame from the server, the
// backend's signal for a rejected token or a protocol violation. The channel
// goes terminal: the connection is closed and the run loop does not retry,
// since redialing with the same credential would be rejected again.
func (c *Channel) handleServerError(message string) {
	if message == "" {
		message = "server rejected the channel"
	}
	c.logger.Error("server rejected the channel; closing",
		logging.String(logging.FieldEventType, "channel_rejected"),
		logging.String("message", message),
		logging.String(logging.FieldErrorHint, "verify the socket token and restart the daemon"))

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.setState(Snapshot{State: StateError, LastError: message})
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) subscribedJobs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	jobs := make([]string, 0, len(c.subs))
	for jobID := range c.subs {
		jobs = append(jobs, jobID)
	}
	sort.Strings(jobs)
	return jobs
}

func (c *Channel) writeFrame(conn Conn, frame outFrame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteJSON(frame)
}

func (c *Channel) setConn(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Channel) setState(snapshot Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.snapshot = snapshot
	fn := c.stateCB
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}
