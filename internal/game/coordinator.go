package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/metaserver/metaserver/internal/event"
	"github.com/metaserver/metaserver/internal/store"
	"go.uber.org/zap"
)

var (
	ErrGameNotFound    = errors.New("game: not found")
	ErrNotHost         = errors.New("game: only the host may do that")
	ErrWrongState      = errors.New("game: wrong state for this operation")
	ErrGameFull        = errors.New("game: full")
	ErrPlayerNotInGame = errors.New("game: player not in game")
)

// ErrNotReady carries the human-readable reason spec.md §4.4 requires
// ("the start is rejected with a human-readable reason").
type ErrNotReady struct{ Reason string }

func (e *ErrNotReady) Error() string { return "game: not ready: " + e.Reason }

// completedRetention is how long a COMPLETED/ABORTED game stays queryable
// before GC (spec.md §4.4 diagram: "~5 min then GC'd").
const completedRetention = 5 * time.Minute

// inactivityLimit is the heartbeat-silence threshold that auto-aborts an
// IN_PROGRESS game (spec.md §4.4).
const inactivityLimit = 30 * time.Minute

// entry pairs a Game with its own mutex (spec.md §5: "one mutex per
// game"); the Coordinator's tableMu only ever guards insert/remove into
// the games map itself.
type entry struct {
	mu   sync.Mutex
	game *Game
}

// Coordinator owns every live game. Lock ordering follows spec.md §5:
// tableMu before any entry.mu, and an entry.mu is never held across a
// store call or a network write.
type Coordinator struct {
	tableMu sync.Mutex
	games   map[int64]*entry
	nextID  int64

	users  store.UserStore
	scored store.ScoredGameRecorder
	log    *zap.Logger

	added   *event.Bus[event.GameAdded]
	changed *event.Bus[event.GameChanged]
	removed *event.Bus[event.GameRemoved]
}

func NewCoordinator(users store.UserStore, scored store.ScoredGameRecorder, log *zap.Logger) *Coordinator {
	return &Coordinator{
		games:   make(map[int64]*entry),
		users:   users,
		scored:  scored,
		log:     log,
		added:   event.NewBus[event.GameAdded](),
		changed: event.NewBus[event.GameChanged](),
		removed: event.NewBus[event.GameRemoved](),
	}
}

func (c *Coordinator) OnAdded(fn func(event.GameAdded))     { c.added.Subscribe(fn) }
func (c *Coordinator) OnChanged(fn func(event.GameChanged)) { c.changed.Subscribe(fn) }
func (c *Coordinator) OnRemoved(fn func(event.GameRemoved)) { c.removed.Subscribe(fn) }

// Create starts a game in INITIALIZING, invisible until the first player
// joins (spec.md §4.4).
func (c *Coordinator) Create(roomID int32, hostUserID int64, settings Settings, now time.Time) *Game {
	c.tableMu.Lock()
	c.nextID++
	id := c.nextID
	g := &Game{
		ID:         id,
		RoomID:     roomID,
		HostUserID: hostUserID,
		Settings:   settings,
		state:      StateInitializing,
		players:    make(map[int64]*Player),
		createdAt:  now,
	}
	c.games[id] = &entry{game: g}
	c.tableMu.Unlock()
	return g
}

func (c *Coordinator) lookup(gameID int64) (*entry, bool) {
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	e, ok := c.games[gameID]
	return e, ok
}

func (c *Coordinator) summary(g *Game) event.GameSummary {
	return event.GameSummary{
		GameID:      g.ID,
		RoomID:      g.RoomID,
		HostUserID:  g.HostUserID,
		Name:        g.Settings.Name,
		GameType:    g.Settings.GameType,
		MapName:     g.Settings.MapName,
		TeamGame:    g.Settings.TeamGame,
		MaxPlayers:  g.Settings.MaxPlayers,
		PlayerCount: len(g.players),
		Private:     g.Settings.PasswordHash != "",
		State:       g.state.String(),
		UpdatedAt:   time.Now(),
	}
}

// AddPlayer seats userID; the first successful add advances
// INITIALIZING -> WAITING (spec.md §4.4).
func (c *Coordinator) AddPlayer(gameID int64, userID int64, now time.Time) error {
	e, ok := c.lookup(gameID)
	if !ok {
		return ErrGameNotFound
	}
	e.mu.Lock()
	g := e.game
	if g.state != StateInitializing && g.state != StateWaiting {
		e.mu.Unlock()
		return ErrWrongState
	}
	if _, already := g.players[userID]; already {
		e.mu.Unlock()
		return nil
	}
	if len(g.players) >= g.Settings.MaxPlayers {
		e.mu.Unlock()
		return ErrGameFull
	}
	g.players[userID] = &Player{UserID: userID, LastActive: now}
	wasInit := g.state == StateInitializing
	if wasInit {
		g.state = StateWaiting
	}
	summary := c.summary(g)
	e.mu.Unlock()

	if wasInit {
		c.added.Publish(event.GameAdded{Game: summary})
	} else {
		c.changed.Publish(event.GameChanged{Game: summary})
	}
	return nil
}

// RemovePlayer drops userID; a game left with zero players ends (spec.md
// §4.4's game_coordinator.py precedent: "End game if no players left").
func (c *Coordinator) RemovePlayer(gameID int64, userID int64, now time.Time) error {
	e, ok := c.lookup(gameID)
	if !ok {
		return ErrGameNotFound
	}
	e.mu.Lock()
	g := e.game
	if _, in := g.players[userID]; !in {
		e.mu.Unlock()
		return ErrPlayerNotInGame
	}
	delete(g.players, userID)
	empty := len(g.players) == 0
	if empty && (g.state == StateWaiting || g.state == StateInitializing || g.state == StateInProgress || g.state == StateStarting) {
		g.state = StateEnding
		g.endedAt = now
	}
	summary := c.summary(g)
	nowCompleted := empty
	if nowCompleted {
		g.state = StateCompleted
	}
	e.mu.Unlock()

	if nowCompleted {
		c.removed.Publish(event.GameRemoved{GameID: gameID})
	} else {
		c.changed.Publish(event.GameChanged{Game: summary})
	}
	return nil
}

// SetReady flips a player's ready flag and, per the original's eager
// behavior, attempts to start the game immediately when this was the
// last blocking condition (SPEC_FULL.md C4 supplement).
func (c *Coordinator) SetReady(gameID, userID int64, ready bool, now time.Time) error {
	e, ok := c.lookup(gameID)
	if !ok {
		return ErrGameNotFound
	}
	e.mu.Lock()
	g := e.game
	p, in := g.players[userID]
	if !in {
		e.mu.Unlock()
		return ErrPlayerNotInGame
	}
	p.Ready = ready
	hostUserID := g.HostUserID
	canAutoStart := ready && g.state == StateWaiting && readinessErr(g) == nil
	e.mu.Unlock()

	if canAutoStart {
		_ = c.StartGame(gameID, hostUserID, now)
	} else {
		c.publishChanged(e)
	}
	return nil
}

// SetTeam assigns userID to team (team games only).
func (c *Coordinator) SetTeam(gameID, userID int64, team int) error {
	e, ok := c.lookup(gameID)
	if !ok {
		return ErrGameNotFound
	}
	e.mu.Lock()
	g := e.game
	if !g.Settings.TeamGame {
		e.mu.Unlock()
		return ErrWrongState
	}
	p, in := g.players[userID]
	if !in {
		e.mu.Unlock()
		return ErrPlayerNotInGame
	}
	p.Team = team
	p.TeamSet = true
	e.mu.Unlock()
	c.publishChanged(e)
	return nil
}

func (c *Coordinator) publishChanged(e *entry) {
	e.mu.Lock()
	summary := c.summary(e.game)
	e.mu.Unlock()
	c.changed.Publish(event.GameChanged{Game: summary})
}

// readinessErr checks the four invariants of spec.md §4.4; caller must
// hold e.mu.
func readinessErr(g *Game) error {
	if g.state != StateWaiting {
		return &ErrNotReady{Reason: "game is not in WAITING"}
	}
	if len(g.players) == 0 {
		return &ErrNotReady{Reason: "no players"}
	}
	teamCounts := make(map[int]int)
	for _, p := range g.players {
		if !p.Ready {
			return &ErrNotReady{Reason: "not all players are ready"}
		}
		if g.Settings.TeamGame {
			if !p.TeamSet {
				return &ErrNotReady{Reason: "not every player has a team assigned"}
			}
			teamCounts[p.Team]++
		}
	}
	if g.Settings.TeamGame {
		first := -1
		for _, n := range teamCounts {
			if first == -1 {
				first = n
				continue
			}
			if n != first {
				return &ErrNotReady{Reason: "teams are not balanced"}
			}
		}
	}
	return nil
}

// StartGame transitions WAITING -> STARTING -> IN_PROGRESS; only the host
// may call it, and every readiness invariant must hold (spec.md §4.4).
func (c *Coordinator) StartGame(gameID, requestingUserID int64, now time.Time) error {
	e, ok := c.lookup(gameID)
	if !ok {
		return ErrGameNotFound
	}
	e.mu.Lock()
	g := e.game
	if g.HostUserID != requestingUserID {
		e.mu.Unlock()
		return ErrNotHost
	}
	if err := readinessErr(g); err != nil {
		e.mu.Unlock()
		return err
	}
	g.state = StateStarting
	g.state = StateInProgress
	g.startedAt = now
	for _, p := range g.players {
		p.LastActive = now
	}
	summary := c.summary(g)
	e.mu.Unlock()

	c.changed.Publish(event.GameChanged{Game: summary})
	return nil
}

// Touch records player activity, resetting the inactivity clock used by
// ReapInactive.
func (c *Coordinator) Touch(gameID, userID int64, now time.Time) {
	e, ok := c.lookup(gameID)
	if !ok {
		return
	}
	e.mu.Lock()
	if p, in := e.game.players[userID]; in {
		p.LastActive = now
	}
	e.mu.Unlock()
}

// ReapInactive aborts any IN_PROGRESS game whose every player has been
// silent for more than 30 minutes, and GCs COMPLETED/ABORTED games older
// than 5 minutes (spec.md §4.4). Intended to be invoked every 60s by
// internal/scheduler.
func (c *Coordinator) ReapInactive(now time.Time) {
	c.tableMu.Lock()
	ids := make([]int64, 0, len(c.games))
	for id := range c.games {
		ids = append(ids, id)
	}
	c.tableMu.Unlock()

	for _, id := range ids {
		c.reapOne(id, now)
	}
}

func (c *Coordinator) reapOne(gameID int64, now time.Time) {
	e, ok := c.lookup(gameID)
	if !ok {
		return
	}
	e.mu.Lock()
	g := e.game
	switch g.state {
	case StateInProgress:
		allInactive := true
		for _, p := range g.players {
			if now.Sub(p.LastActive) < inactivityLimit {
				allInactive = false
				break
			}
		}
		if allInactive && len(g.players) > 0 {
			g.state = StateAborted
			g.endedAt = now
			e.mu.Unlock()
			c.log.Warn("aborting inactive game", zap.Int64("game_id", gameID))
			c.removed.Publish(event.GameRemoved{GameID: gameID})
			return
		}
	case StateCompleted, StateAborted:
		if now.Sub(g.endedAt) > completedRetention {
			e.mu.Unlock()
			c.tableMu.Lock()
			delete(c.games, gameID)
			c.tableMu.Unlock()
			return
		}
	}
	e.mu.Unlock()
}

// RemoveUserFromAnyGame drops userID from whichever game currently seats
// them, for C1's disconnect cleanup (spec.md §4.1: a closed connection
// "fires a disconnect event consumed by ... C3/C4 (membership
// cleanup)"). Every game that seats userID is visited, not just the
// first match.
func (c *Coordinator) RemoveUserFromAnyGame(userID int64, now time.Time) {
	c.tableMu.Lock()
	ids := make([]int64, 0, len(c.games))
	for id, e := range c.games {
		e.mu.Lock()
		_, in := e.game.players[userID]
		e.mu.Unlock()
		if in {
			ids = append(ids, id)
		}
	}
	c.tableMu.Unlock()

	for _, id := range ids {
		_ = c.RemovePlayer(id, userID, now)
	}
}

// Get returns a shallow copy of gameID's dynamic view for handlers that
// need to read state without holding the game's lock across a network
// write (spec.md §5).
func (c *Coordinator) Get(gameID int64) (event.GameSummary, bool) {
	e, ok := c.lookup(gameID)
	if !ok {
		return event.GameSummary{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return c.summary(e.game), true
}

// SubmitStandings records a client-reported outcome and, once two reports
// agree (or the game is single-player), reconciles and scores the game
// exactly once (spec.md §4.4; idempotency enforced by scored).
func (c *Coordinator) SubmitStandings(ctx context.Context, gameID int64, report StandingsReport) error {
	e, ok := c.lookup(gameID)
	if !ok {
		return ErrGameNotFound
	}
	e.mu.Lock()
	g := e.game
	g.standings = append(g.standings, &report)
	authoritative := reconcileStandings(len(g.players), g.standings)
	e.mu.Unlock()

	if authoritative == nil {
		return nil
	}

	firstTime, err := c.scored.MarkScored(ctx, gameID)
	if err != nil {
		return err
	}
	if !firstTime {
		return nil
	}

	if err := c.applyScore(ctx, g, authoritative); err != nil {
		c.log.Error("score application failed", zap.Int64("game_id", gameID), zap.Error(err))
		return err
	}

	e.mu.Lock()
	for _, sp := range authoritative.Players {
		if p, in := g.players[sp.UserID]; in {
			p.ScoreAtEnd = sp.PointsKilled - sp.PointsLost
		}
	}
	g.state = StateCompleted
	g.endedAt = time.Now()
	e.mu.Unlock()

	c.removed.Publish(event.GameRemoved{GameID: gameID})
	return nil
}
