package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/logging"
	"github.com/muurk/tuyalocal/internal/protocol"
)

const (
	// DefaultConnectTimeout bounds a single dial; reads after connect have no deadline
	DefaultConnectTimeout = 10 * time.Second

	// DefaultMaxSendRetries is the number of write attempts before a send fails
	DefaultMaxSendRetries = 5

	// readSize is the receive buffer; one device message fits in a single read
	readSize = 1024

	// Listener reconnect pacing
	reconnectInitialInterval = 500 * time.Millisecond
	reconnectMaxInterval     = 30 * time.Second
)

// Dialer opens the TCP stream to a device. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config identifies one device endpoint
type Config struct {
	// ID is the device id (gwId/devId)
	ID string

	// Address is the device IP or hostname
	Address string

	// Port defaults to protocol.DefaultPort (6668)
	Port int

	// LocalKey is the 16-byte shared key
	LocalKey []byte

	// ConnectTimeout defaults to DefaultConnectTimeout
	ConnectTimeout time.Duration

	// MaxSendRetries defaults to DefaultMaxSendRetries
	MaxSendRetries int

	// Dialer defaults to a *net.Dialer
	Dialer Dialer
}

// State is the connection state of a session
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session is a persistent connection to one device.
//
// A session owns at most one socket and one listener goroutine. Commands are
// written under the connection lock so concurrent sends never interleave.
// The listener reads without holding the lock.
type Session struct {
	cfg     Config
	addr    string
	codec   *protocol.Codec
	decoder protocol.FrameDecoder

	connMu sync.Mutex
	conn   net.Conn
	state  atomic.Int32

	// last known status, replaced wholesale by the listener
	status atomic.Pointer[protocol.Status]

	mu        sync.Mutex
	observer  func(protocol.Status)
	listening bool
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// newBackOff paces listener reconnects
	newBackOff func() backoff.BackOff
}

// New validates cfg and returns a disconnected session
func New(cfg Config) (*Session, error) {
	if cfg.ID == "" {
		return nil, NewValidationError("device id is required")
	}
	if cfg.Address == "" {
		return nil, NewValidationError("device address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = protocol.DefaultPort
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, NewValidationError("invalid port %d", cfg.Port)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.MaxSendRetries <= 0 {
		cfg.MaxSendRetries = DefaultMaxSendRetries
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}

	codec, err := protocol.NewCodec(cfg.ID, cfg.LocalKey)
	if err != nil {
		return nil, NewValidationError("invalid local key: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		addr:    net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)),
		codec:   codec,
		decoder: codec,
		ctx:     ctx,
		cancel:  cancel,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = reconnectInitialInterval
			b.MaxInterval = reconnectMaxInterval
			b.MaxElapsedTime = 0
			return b
		},
	}
	return s, nil
}

// ID returns the device id
func (s *Session) ID() string {
	return s.cfg.ID
}

// Addr returns host:port of the device
func (s *Session) Addr() string {
	return s.addr
}

// State returns the current connection state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Status returns a copy of the last status received, or nil if none yet.
// It is not cleared when the connection drops.
func (s *Session) Status() protocol.Status {
	p := s.status.Load()
	if p == nil {
		return nil
	}
	return p.Clone()
}

// Subscribe registers cb as the single observer (replacing any previous one),
// connects, and starts the listener if it is not already running.
//
// cb runs on the listener goroutine; it must return quickly and must not call Close.
func (s *Session) Subscribe(cb func(protocol.Status)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.observer = cb
	s.mu.Unlock()

	s.connect()
	s.startListener()
	return nil
}

// Listening reports whether the listener goroutine is running
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Close stops the listener, closes the socket and waits for the listener to exit.
// Later commands fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	s.connMu.Lock()
	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
	s.state.Store(int32(StateDisconnected))

	s.wg.Wait()
	logging.LogConnection(s.addr, "closed")
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// connect replaces the current socket with a fresh one. Failures are logged
// and leave the socket nil; the next send or listener iteration retries.
func (s *Session) connect() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connectLocked()
}

// reconnectIf reconnects only if stale is still the current socket, so a
// listener that lost its socket to a concurrent send does not tear down the
// replacement.
func (s *Session) reconnectIf(stale net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != stale {
		return
	}
	s.connectLocked()
}

// markDisconnectedIf records the loss of stale unless it was already replaced
func (s *Session) markDisconnectedIf(stale net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == stale {
		s.state.Store(int32(StateDisconnected))
	}
}

func (s *Session) connectLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.ctx.Err() != nil {
		s.state.Store(int32(StateDisconnected))
		return
	}

	s.state.Store(int32(StateConnecting))

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, err := s.cfg.Dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		devErr := ClassifyNetworkError(err, s.addr)
		logging.Warn("Connect failed",
			zap.String("addr", s.addr),
			zap.String("device_id", s.cfg.ID),
			zap.String("type", devErr.Type.String()),
			zap.Error(err),
		)
		s.state.Store(int32(StateDisconnected))
		return
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	// Steady-state reads block without a deadline
	_ = conn.SetDeadline(time.Time{})

	s.conn = conn
	s.state.Store(int32(StateConnected))
	logging.LogConnection(s.addr, "connected")
}

func (s *Session) currentConn() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// write performs a single write attempt under the connection lock
func (s *Session) write(frame []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if _, err := s.conn.Write(frame); err != nil {
		return err
	}
	logging.LogFrame(s.addr, "sent", frame)
	return nil
}

// send writes frame, reconnecting between failed attempts. With the default
// budget of 5 attempts there are at most 4 reconnects before the error is
// returned to the caller.
func (s *Session) send(frame []byte) error {
	if s.isClosed() {
		return ErrClosed
	}

	if s.currentConn() == nil {
		s.connect()
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxSendRetries; attempt++ {
		if attempt > 1 {
			s.connect()
		}

		lastErr = s.write(frame)
		if lastErr == nil {
			s.ensureListener()
			return nil
		}
		if s.isClosed() {
			return ErrClosed
		}

		if attempt < s.cfg.MaxSendRetries {
			logging.Warn("Send failed, reconnecting",
				zap.String("addr", s.addr),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
		}
	}

	logging.Error("Send failed, giving up",
		zap.String("addr", s.addr),
		zap.Int("attempts", s.cfg.MaxSendRetries),
		zap.Error(lastErr),
	)
	return NewNetworkError(fmt.Sprintf("send failed after %d attempts", s.cfg.MaxSendRetries), lastErr, s.addr)
}

// ensureListener restarts a listener that died while an observer is registered
func (s *Session) ensureListener() {
	s.mu.Lock()
	dead := !s.listening && s.observer != nil && !s.closed
	s.mu.Unlock()

	if dead {
		logging.Error("Listener is not running, restarting it", zap.String("addr", s.addr))
		s.startListener()
	}
}

func (s *Session) startListener() {
	s.mu.Lock()
	if s.listening || s.closed {
		s.mu.Unlock()
		return
	}
	s.listening = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.listen()
}

func (s *Session) requestStatus() {
	if err := s.QueryStatus(); err != nil && !errors.Is(err, ErrClosed) {
		logging.Warn("Status request failed", zap.String("addr", s.addr), zap.Error(err))
	}
}

// sleep waits d or until the session is closed; it reports whether to continue
func (s *Session) sleep(d time.Duration) bool {
	if d == backoff.Stop {
		d = reconnectMaxInterval
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Session) listen() {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Listener stopped by panic",
				zap.String("addr", s.addr),
				zap.Any("panic", r),
			)
		}
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
	}()

	logging.Info("Listener started", zap.String("addr", s.addr))
	defer logging.Info("Listener stopped", zap.String("addr", s.addr))

	bo := s.newBackOff()
	buf := make([]byte, readSize)

	s.requestStatus()

	for s.ctx.Err() == nil {
		conn := s.currentConn()
		if conn == nil {
			if !s.sleep(bo.NextBackOff()) {
				return
			}
			s.reconnectIf(nil)
			s.requestStatus()
			continue
		}

		n, err := conn.Read(buf)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			logging.Info("Receive error, reconnecting",
				zap.String("addr", s.addr),
				zap.Error(err),
			)
			s.markDisconnectedIf(conn)
			if !s.sleep(bo.NextBackOff()) {
				return
			}
			s.reconnectIf(conn)
			s.requestStatus()
			continue
		}
		bo.Reset()

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		logging.LogFrame(s.addr, "received", chunk)

		status, err := s.decoder.Decode(chunk)
		if err != nil {
			logging.Info("Decode failed, requesting status",
				zap.String("addr", s.addr),
				zap.Error(NewDecodeError("could not decode frame", err, s.addr)),
			)
			s.requestStatus()
			continue
		}

		logging.Info("Device state received",
			zap.String("addr", s.addr),
			zap.String("device_id", s.cfg.ID),
			zap.Any("dps", status.DPS()),
		)
		s.status.Store(&status)

		s.mu.Lock()
		cb := s.observer
		s.mu.Unlock()
		if cb != nil {
			cb(status.Clone())
		}
	}
}
