package game

import (
	"context"
	"testing"
	"time"

	"github.com/metaserver/metaserver/internal/event"
	"github.com/metaserver/metaserver/internal/store"
	"github.com/metaserver/metaserver/internal/store/memory"
	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return NewCoordinator(memory.NewUsers(), memory.NewScoredGames(), zap.NewNop())
}

func TestAddPlayerAdvertisesOnFirstPlayer(t *testing.T) {
	c := newTestCoordinator(t)
	now := time.Now()
	g := c.Create(1, 100, Settings{Name: "test", MaxPlayers: 4}, now)

	var sawAdded bool
	c.OnAdded(func(e event.GameAdded) { sawAdded = true })

	if err := c.AddPlayer(g.ID, 100, now); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	summary, ok := c.Get(g.ID)
	if !ok {
		t.Fatalf("game not found after AddPlayer")
	}
	if summary.State != "WAITING" {
		t.Fatalf("expected WAITING after first player, got %s", summary.State)
	}
	if !sawAdded {
		t.Fatalf("expected GameAdded event on first player join")
	}
}

func TestStartGameRejectsUntilAllReady(t *testing.T) {
	c := newTestCoordinator(t)
	now := time.Now()
	g := c.Create(1, 100, Settings{Name: "test", MaxPlayers: 4}, now)
	_ = c.AddPlayer(g.ID, 100, now)
	_ = c.AddPlayer(g.ID, 200, now)

	if err := c.StartGame(g.ID, 100, now); err == nil {
		t.Fatalf("expected start to fail before anyone is ready")
	}

	_ = c.SetReady(g.ID, 100, true, now)
	if err := c.StartGame(g.ID, 100, now); err == nil {
		t.Fatalf("expected start to fail while player 200 is not ready")
	}

	_ = c.SetReady(g.ID, 200, true, now)
	summary, _ := c.Get(g.ID)
	if summary.State != "IN_PROGRESS" {
		t.Fatalf("expected auto-start once all players ready, got %s", summary.State)
	}
}

func TestStartGameRequiresHost(t *testing.T) {
	c := newTestCoordinator(t)
	now := time.Now()
	g := c.Create(1, 100, Settings{Name: "test", MaxPlayers: 2}, now)
	_ = c.AddPlayer(g.ID, 100, now)
	_ = c.SetReady(g.ID, 100, true, now)

	if err := c.StartGame(g.ID, 999, now); err != ErrNotHost {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
}

func TestTeamGameRequiresBalancedTeams(t *testing.T) {
	c := newTestCoordinator(t)
	now := time.Now()
	g := c.Create(1, 100, Settings{Name: "teams", MaxPlayers: 4, TeamGame: true}, now)
	_ = c.AddPlayer(g.ID, 100, now)
	_ = c.AddPlayer(g.ID, 200, now)
	_ = c.AddPlayer(g.ID, 300, now)

	_ = c.SetTeam(g.ID, 100, 0)
	_ = c.SetTeam(g.ID, 200, 1)
	_ = c.SetTeam(g.ID, 300, 1)

	_ = c.SetReady(g.ID, 100, true, now)
	_ = c.SetReady(g.ID, 200, true, now)
	_ = c.SetReady(g.ID, 300, true, now)

	if err := c.StartGame(g.ID, 100, now); err == nil {
		t.Fatalf("expected unbalanced teams (1 vs 2) to reject start")
	}
}

func TestReapInactiveAbortsSilentGame(t *testing.T) {
	c := newTestCoordinator(t)
	now := time.Now()
	g := c.Create(1, 100, Settings{Name: "solo", MaxPlayers: 1}, now)
	_ = c.AddPlayer(g.ID, 100, now)
	_ = c.SetReady(g.ID, 100, true, now)

	later := now.Add(31 * time.Minute)
	c.ReapInactive(later)

	summary, ok := c.Get(g.ID)
	if !ok {
		t.Fatalf("aborted game should still be queryable until GC'd")
	}
	if summary.State != "ABORTED" {
		t.Fatalf("expected ABORTED after 31 minutes of silence, got %s", summary.State)
	}
}

func TestSubmitStandingsAppliesScoreOnce(t *testing.T) {
	users := memory.NewUsers()
	c := NewCoordinator(users, memory.NewScoredGames(), zap.NewNop())
	uid, err := users.Insert(context.Background(), &store.User{Login: "duelist"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	now := time.Now()
	g := c.Create(1, uid, Settings{Name: "duel", MaxPlayers: 1}, now)
	_ = c.AddPlayer(g.ID, uid, now)
	_ = c.SetReady(g.ID, uid, true, now)

	report := StandingsReport{
		SubmittedBy:     uid,
		NumberOfPlayers: 1,
		NumTeams:        1,
		Teams:           []StandingsTeam{{Place: 0}},
		Players:         []StandingsPlayer{{UserID: uid, TeamIndex: 0, PointsKilled: 5}},
	}

	if err := c.SubmitStandings(context.Background(), g.ID, report); err != nil {
		t.Fatalf("SubmitStandings: %v", err)
	}
	if err := c.SubmitStandings(context.Background(), g.ID, report); err != nil {
		t.Fatalf("second SubmitStandings call must be a no-op, not an error: %v", err)
	}

	u, err := users.GetByID(context.Background(), uid)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u.RankedScore.GamesPlayed != 1 {
		t.Fatalf("expected the score applied exactly once, games played = %d", u.RankedScore.GamesPlayed)
	}
}
