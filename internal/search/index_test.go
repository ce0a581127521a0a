package search

import (
	"testing"

	"github.com/metaserver/metaserver/internal/event"
)

func TestSearchFiltersByGameTypeAndCapsAtFive(t *testing.T) {
	idx := NewIndex()
	for i := int64(1); i <= 12; i++ {
		gt := 1
		if i%2 == 0 {
			gt = 2
		}
		idx.upsert(event.GameSummary{GameID: i, RoomID: 1, GameType: gt, Name: "g"})
	}

	results := idx.Search(Query{GameType: 1})
	if len(results) != MaxResults {
		t.Fatalf("expected six matches capped to %d results, got %d", MaxResults, len(results))
	}
	for _, r := range results {
		if r.GameType != 1 {
			t.Fatalf("got game type %d, expected 1", r.GameType)
		}
	}
}

func TestSearchRemoveDropsFromResults(t *testing.T) {
	idx := NewIndex()
	idx.upsert(event.GameSummary{GameID: 1, RoomID: 1, Name: "alpha"})
	idx.remove(1)

	if results := idx.Search(Query{}); len(results) != 0 {
		t.Fatalf("expected removed game to disappear, got %d results", len(results))
	}
}

func TestSearchNameSubstringIsCaseInsensitive(t *testing.T) {
	idx := NewIndex()
	idx.upsert(event.GameSummary{GameID: 1, RoomID: 1, Name: "Bloodwars Arena"})

	if got := idx.Search(Query{NameSubstring: "bloodwars"}); len(got) != 1 {
		t.Fatalf("expected a case-insensitive substring match, got %d", len(got))
	}
	if got := idx.Search(Query{NameSubstring: "nomatch"}); len(got) != 0 {
		t.Fatalf("expected no match, got %d", len(got))
	}
}
