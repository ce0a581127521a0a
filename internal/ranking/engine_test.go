package ranking

import (
	"context"
	"testing"

	"github.com/metaserver/metaserver/internal/store"
	"github.com/metaserver/metaserver/internal/store/memory"
	"go.uber.org/zap"
)

func seedUser(t *testing.T, users *memory.Users, login string, points, games int64) int64 {
	t.Helper()
	id, err := users.Insert(context.Background(), &store.User{
		Login:       login,
		RankedScore: store.ScoreRow{Points: points, GamesPlayed: games},
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", login, err)
	}
	return id
}

func TestRecomputeAllPinsLowGameCountUsers(t *testing.T) {
	users := memory.NewUsers()
	seedUser(t, users, "veteran", 100, 50)
	newbieID := seedUser(t, users, "newbie", 0, 1)

	eng := NewEngine(users, zap.NewNop())
	if err := eng.RecomputeAll(context.Background()); err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}

	u, err := users.GetByID(context.Background(), newbieID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if Caste(u.Caste) != CasteDagger {
		t.Fatalf("expected a 1-game user pinned to DAGGER, got %s", Caste(u.Caste))
	}
}

func TestRecomputeAllCrownsTopScorerComet(t *testing.T) {
	users := memory.NewUsers()
	topID := seedUser(t, users, "champion", 1000, 200)
	seedUser(t, users, "runnerup", 500, 150)
	for i := 0; i < 20; i++ {
		seedUser(t, users, "filler"+string(rune('a'+i)), int64(10*i), 10)
	}

	eng := NewEngine(users, zap.NewNop())
	if err := eng.RecomputeAll(context.Background()); err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}

	u, err := users.GetByID(context.Background(), topID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if Caste(u.Caste) != CasteComet {
		t.Fatalf("expected the top scorer to be crowned COMET, got %s", Caste(u.Caste))
	}

	snap := eng.Latest()
	if snap.Overall.TotalUsers == 0 {
		t.Fatalf("expected a non-empty overall snapshot after recompute")
	}
}

func TestCompareLessOrdersHighGamesBeforeLow(t *testing.T) {
	high := rawRankData{gamesPlayed: 10, points: 0}
	low := rawRankData{gamesPlayed: 1, points: 1000}
	if !compareLess(high, low) {
		t.Fatalf("expected a user above the games-played pin to sort before a pinned user regardless of points")
	}
}
