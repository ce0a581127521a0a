package net

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap"
)

// ReapInterval is how often the Manager's reaper sweeps for idle
// connections (spec.md §4.1: "a reaper runs every 60 s").
const ReapInterval = 60 * time.Second

// Idle thresholds per connection class, spec.md §4.1.
const (
	PlayerIdleThreshold = 10 * time.Minute
	RoomIdleThreshold   = 5 * time.Minute
	WebIdleThreshold    = 2 * time.Minute
)

func idleThreshold(class wire.ConnClass) time.Duration {
	switch class {
	case wire.ConnRoom:
		return RoomIdleThreshold
	case wire.ConnWeb:
		return WebIdleThreshold
	default:
		return PlayerIdleThreshold
	}
}

// listener accepts on one bound address for exactly one connection class.
type listener struct {
	class wire.ConnClass
	ln    net.Listener
	adm   *admission
}

func newListener(class wire.ConnClass, bindAddr string, bans BanChecker, log *zap.Logger) (*listener, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &listener{
		class: class,
		ln:    ln,
		adm:   newAdmission(bindAddr, bans, log),
	}, nil
}

// Manager owns the three class listeners, hands newly accepted
// connections to the caller, tracks live connections for the reaper,
// and fires disconnect notifications consumed by C2/C3/C4.
type Manager struct {
	listeners map[wire.ConnClass]*listener
	nextID    atomic.Uint64

	newConns chan *Conn
	deadCh   chan *Conn

	ingressLen, egressLen int

	live   map[uint64]*Conn
	liveCh chan liveOp

	log     *zap.Logger
	closeCh chan struct{}
}

type liveOp struct {
	add    *Conn
	remove uint64
}

// Binds names one TCP address per connection class.
type Binds struct {
	Player string
	Room   string
	Web    string
}

func NewManager(binds Binds, bans BanChecker, ingressLen, egressLen int, log *zap.Logger) (*Manager, error) {
	m := &Manager{
		listeners:  make(map[wire.ConnClass]*listener, 3),
		newConns:   make(chan *Conn, 64),
		deadCh:     make(chan *Conn, 64),
		ingressLen: ingressLen,
		egressLen:  egressLen,
		live:       make(map[uint64]*Conn),
		liveCh:     make(chan liveOp, 64),
		log:        log,
		closeCh:    make(chan struct{}),
	}

	specs := []struct {
		class wire.ConnClass
		addr  string
	}{
		{wire.ConnPlayer, binds.Player},
		{wire.ConnRoom, binds.Room},
		{wire.ConnWeb, binds.Web},
	}
	for _, s := range specs {
		if s.addr == "" {
			continue
		}
		ln, err := newListener(s.class, s.addr, bans, log)
		if err != nil {
			m.closeListeners()
			return nil, err
		}
		m.listeners[s.class] = ln
	}
	return m, nil
}

func (m *Manager) closeListeners() {
	for _, l := range m.listeners {
		l.ln.Close()
	}
}

// Run starts the accept loops and the single goroutine that owns the
// live-connection table: it applies liveCh additions/removals and runs
// the reaper sweep, both from the same goroutine, so m.live is never
// touched concurrently. It blocks until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	for _, l := range m.listeners {
		go m.acceptLoop(ctx, l)
	}

	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case op := <-m.liveCh:
			m.applyLiveOp(op)
		case <-ticker.C:
			m.reap()
		}
	}
}

func (m *Manager) acceptLoop(ctx context.Context, l *listener) {
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			select {
			case <-m.closeCh:
				return
			default:
			}
			m.log.Error("accept failed", zap.String("class", l.class.String()), zap.Error(err))
			continue
		}

		if !l.adm.allow(ctx, nc.RemoteAddr()) {
			m.log.Warn("rejected connection failing host admission",
				zap.String("class", l.class.String()),
				zap.String("remote", nc.RemoteAddr().String()))
			nc.Close()
			continue
		}

		id := m.nextID.Add(1)
		conn := newConn(nc, id, l.class, m.ingressLen, m.egressLen, m.log)
		conn.start()

		m.liveCh <- liveOp{add: conn}
		go m.watchDeath(conn)

		select {
		case m.newConns <- conn:
		default:
			m.log.Warn("new-connection queue full, rejecting", zap.Uint64("conn", id))
			conn.Close()
		}
	}
}

// watchDeath reports a connection's close to deadCh exactly once, the
// moment its goroutines tear it down (peer reset, idle reap, protocol
// error) so C2/C3/C4 can release their per-connection state.
func (m *Manager) watchDeath(c *Conn) {
	<-c.closeCh
	m.liveCh <- liveOp{remove: c.ID}
	select {
	case m.deadCh <- c:
	case <-m.closeCh:
	}
}

func (m *Manager) applyLiveOp(op liveOp) {
	if op.add != nil {
		m.live[op.add.ID] = op.add
	}
	if op.remove != 0 {
		delete(m.live, op.remove)
	}
}

// reap runs on the Manager's single owning goroutine (see Run), so
// ranging m.live here is data-race-free.
func (m *Manager) reap() {
	now := time.Now()
	for _, c := range m.live {
		if c.IsClosed() {
			continue
		}
		if c.IdleFor(now) > idleThreshold(c.Class) {
			m.log.Info("reaping idle connection", zap.Uint64("conn", c.ID), zap.String("class", c.Class.String()))
			c.Close()
		}
	}
}

// NewConns returns the channel of newly accepted, admitted connections.
func (m *Manager) NewConns() <-chan *Conn {
	return m.newConns
}

// DeadConns returns the channel of connections that have torn down.
func (m *Manager) DeadConns() <-chan *Conn {
	return m.deadCh
}

func (m *Manager) Shutdown() {
	close(m.closeCh)
	m.closeListeners()
}
