// Package server wires C1 (transport), C2 (auth), C3 (rooms), C4
// (games), and C5 (search/ranking) into one running process and runs the
// opcode dispatch loop for every accepted connection. Grounded on the
// teacher's cmd/l1jgo/main.go wiring order (listeners up, then the
// game-loop goroutine) and on the now-removed internal/net/packet
// Registry's per-connection dispatch idiom, generalized from
// session-state gating to a single authenticated-or-not gate; both
// frame listeners share one opcode table.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/metaserver/metaserver/internal/auth"
	"github.com/metaserver/metaserver/internal/event"
	"github.com/metaserver/metaserver/internal/game"
	"github.com/metaserver/metaserver/internal/net"
	"github.com/metaserver/metaserver/internal/ranking"
	"github.com/metaserver/metaserver/internal/room"
	"github.com/metaserver/metaserver/internal/scheduler"
	"github.com/metaserver/metaserver/internal/search"
	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap"
)

// gameReapInterval matches the 60s sweep cadence C1's reaper already
// uses (spec.md §4.4 diagram).
const gameReapInterval = 60 * time.Second

// session is the per-connection authentication state the dispatch table
// gates on. It is distinct from auth.SessionRegistry, which maps user id
// <-> connection id for cross-connection lookups (kicks, room
// broadcasts); session only ever answers "who is this socket, right now".
type session struct {
	mu       sync.Mutex
	userID   int64
	loggedIn bool
}

func (s *session) get() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.loggedIn
}

func (s *session) set(userID int64) {
	s.mu.Lock()
	s.userID = userID
	s.loggedIn = true
	s.mu.Unlock()
}

func (s *session) clear() {
	s.mu.Lock()
	s.userID = 0
	s.loggedIn = false
	s.mu.Unlock()
}

// Server owns every running component and the connection/session
// bookkeeping the dispatch table needs to turn a user id back into a
// socket to write to.
type Server struct {
	Net       *net.Manager
	Auth      *auth.Service
	Rooms     *room.Registry
	Games     *game.Coordinator
	Search    *search.Index
	Ranking   *ranking.Engine
	Scheduler *scheduler.Runner
	Log       *zap.Logger

	rankingInterval time.Duration

	connsMu sync.Mutex
	conns   map[uint64]*net.Conn

	sessMu sync.Mutex
	sess   map[uint64]*session
}

// New builds a Server from its already-constructed components;
// cmd/metaserverd owns construction order and config plumbing.
func New(nm *net.Manager, authSvc *auth.Service, rooms *room.Registry, games *game.Coordinator, idx *search.Index, rank *ranking.Engine, sched *scheduler.Runner, rankingInterval time.Duration, log *zap.Logger) *Server {
	s := &Server{
		Net: nm, Auth: authSvc, Rooms: rooms, Games: games,
		Search: idx, Ranking: rank, Scheduler: sched,
		rankingInterval: rankingInterval,
		Log:             log,
		conns:           make(map[uint64]*net.Conn),
		sess:            make(map[uint64]*session),
	}

	idx.Subscribe(games.OnAdded, games.OnChanged, games.OnRemoved)
	games.OnAdded(func(e event.GameAdded) { s.broadcastRoom(e.Game.RoomID, wire.OpGameStateChanged, encodeGameSummary(e.Game)) })
	games.OnChanged(func(e event.GameChanged) { s.broadcastRoom(e.Game.RoomID, wire.OpGameStateChanged, encodeGameSummary(e.Game)) })
	rooms.OnJoin(func(e event.RoomJoined) { s.broadcastRoom(e.RoomID, wire.OpPlayerList, encodeMemberList(rooms.Members(e.RoomID))) })
	rooms.OnLeave(func(e event.RoomLeft) { s.broadcastRoom(e.RoomID, wire.OpPlayerList, encodeMemberList(rooms.Members(e.RoomID))) })

	return s
}

// Run starts the transport accept loops, the scheduled jobs, and the
// accept/dispatch supervisor loop. It blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) {
	go s.Net.Run(ctx)
	s.registerJobs()
	go s.Scheduler.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.Net.NewConns():
			s.trackConn(c)
			go s.handleConn(ctx, c)
		case c := <-s.Net.DeadConns():
			s.forgetConn(c)
		}
	}
}

// registerJobs wires C4's inactivity reaper and C5's caste recomputation
// onto internal/scheduler, each running on its own independent ticker
// rather than the teacher's single shared-tick ECS Runner (SPEC_FULL.md's
// components have no common simulation frame to synchronize on).
func (s *Server) registerJobs() {
	s.Scheduler.Register(scheduler.Job{
		Name:     "game-reaper",
		Interval: gameReapInterval,
		Run: func(ctx context.Context) error {
			s.Games.ReapInactive(time.Now())
			return nil
		},
	})
	s.Scheduler.Register(scheduler.Job{
		Name:     "ranking-recompute",
		Interval: s.rankingInterval,
		Run: func(ctx context.Context) error {
			if err := s.Ranking.RecomputeAll(ctx); err != nil {
				return err
			}
			s.broadcastAll(wire.OpCasteBreakpoints, encodeBreakpoints(s.Ranking.Latest()))
			return nil
		},
	})
}

func (s *Server) trackConn(c *net.Conn) {
	s.connsMu.Lock()
	s.conns[c.ID] = c
	s.connsMu.Unlock()

	s.sessMu.Lock()
	s.sess[c.ID] = &session{}
	s.sessMu.Unlock()
}

func (s *Server) forgetConn(c *net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, c.ID)
	s.connsMu.Unlock()

	s.sessMu.Lock()
	sess, ok := s.sess[c.ID]
	delete(s.sess, c.ID)
	s.sessMu.Unlock()

	s.Auth.Disconnect(c.ID)
	if !ok {
		return
	}
	if userID, loggedIn := sess.get(); loggedIn {
		s.Rooms.Leave(userID)
		s.Games.RemoveUserFromAnyGame(userID, time.Now())
	}
}

// handleConn is the per-connection dispatch loop: one goroutine per
// socket, reading only from InQueue, mirroring the teacher's
// reader-goroutine-feeds-handler-goroutine split in session.go.
func (s *Server) handleConn(ctx context.Context, c *net.Conn) {
	sess := s.sessionFor(c.ID)
	if sess == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case frame := <-c.InQueue:
			s.dispatch(ctx, c, sess, frame)
		}
	}
}

func (s *Server) sessionFor(connID uint64) *session {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	return s.sess[connID]
}

func (s *Server) connFor(connID uint64) *net.Conn {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return s.conns[connID]
}

// broadcastRoom sends op/payload to every connection bound to a user
// currently in roomID (spec.md §4.3's membership-delta and game-state
// broadcasts).
func (s *Server) broadcastRoom(roomID int32, op wire.Opcode, payload []byte) {
	for _, userID := range s.Rooms.Members(roomID) {
		s.sendToUser(userID, op, payload)
	}
}

// broadcastAll sends op/payload to every currently bound user, used for
// the caste-breakpoint republish (spec.md §4.5).
func (s *Server) broadcastAll(op wire.Opcode, payload []byte) {
	for _, connID := range s.Auth.Sessions.AllConnections() {
		if c := s.connFor(connID); c != nil {
			c.Send(uint16(op), payload)
		}
	}
}

func (s *Server) sendToUser(userID int64, op wire.Opcode, payload []byte) {
	for _, connID := range s.Auth.Sessions.ConnectionsForUser(userID) {
		if c := s.connFor(connID); c != nil {
			c.Send(uint16(op), payload)
		}
	}
}
