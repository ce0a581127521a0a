package game

import (
	"testing"

	"github.com/metaserver/metaserver/internal/store"
)

func TestReconcileStandingsSinglePlayerAccepted(t *testing.T) {
	r := &StandingsReport{GameEndedCode: 1}
	got := reconcileStandings(1, []*StandingsReport{r})
	if got != r {
		t.Fatalf("expected the lone report to be accepted for a 1-player game")
	}
}

func TestReconcileStandingsNoAgreement(t *testing.T) {
	reports := []*StandingsReport{
		{GameEndedCode: 1, Version: 1, NumberOfPlayers: 2},
		{GameEndedCode: 2, Version: 1, NumberOfPlayers: 2},
	}
	if got := reconcileStandings(2, reports); got != nil {
		t.Fatalf("expected no authoritative report, got %+v", got)
	}
}

func TestReconcileStandingsAgreementWins(t *testing.T) {
	first := &StandingsReport{GameEndedCode: 1, Version: 1, NumberOfPlayers: 2}
	decoy := &StandingsReport{GameEndedCode: 9, Version: 9, NumberOfPlayers: 9}
	agree := &StandingsReport{GameEndedCode: 1, Version: 1, NumberOfPlayers: 2}

	got := reconcileStandings(2, []*StandingsReport{first, decoy, agree})
	if got != first {
		t.Fatalf("expected the first report of the agreeing pair to be authoritative")
	}
}

func TestReconcileStandingsEmpty(t *testing.T) {
	if got := reconcileStandings(2, nil); got != nil {
		t.Fatalf("expected nil for no reports, got %+v", got)
	}
}

func TestApplyRowWinnerLoserOther(t *testing.T) {
	var winner store.ScoreRow
	applyRow(&winner, StandingsPlayer{PointsKilled: 10, PointsLost: 2}, 0, 3)
	if winner.Wins != 1 || winner.Points != 3 || winner.GamesPlayed != 1 {
		t.Fatalf("winner row wrong: %+v", winner)
	}

	var loser store.ScoreRow
	applyRow(&loser, StandingsPlayer{PointsKilled: 1, PointsLost: 10}, 2, 3)
	if loser.Losses != 1 || loser.Points != -1 {
		t.Fatalf("loser row wrong: %+v", loser)
	}

	var middle store.ScoreRow
	applyRow(&middle, StandingsPlayer{PointsKilled: 5, PointsLost: 5}, 1, 3)
	if middle.Wins != 0 || middle.Losses != 0 || middle.GamesPlayed != 1 {
		t.Fatalf("middle-place row wrong: %+v", middle)
	}
}
