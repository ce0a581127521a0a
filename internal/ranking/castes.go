// Package ranking implements C5's caste recomputation batch: periodic
// (and on-demand) re-derivation of every user's caste from the ranked
// population's point distribution, grounded verbatim in
// original_source/services/rank.py's RankingSystem. The percentile
// table, special-rank draw order and counts, and the games-played pin
// are taken directly from rank.py's RANK_PERCENTAGES, RankConstants, and
// UserIndex; this package additionally derives a concrete per-user Caste
// value (rank.py only ever persists score data and a breakpoint table,
// never an explicit per-user caste field — spec.md §4.5 requires the
// caste itself be written back, so Engine.assignCaste resolves that:
// users pinned by games-played get the DAGGER/DAGGER_WITH_HILT/KRIS_KNIFE
// caste their games-played count names; everyone else's caste is the
// index of the percentile bucket their position in the sorted-by-points
// stream falls into, walked in rank.py's own bucket order).
package ranking

// Caste is one of the 17 Bungie ranks (rank.py's BungieRank enum).
type Caste int

const (
	CasteDagger Caste = iota
	CasteDaggerWithHilt
	CasteKrisKnife
	CasteSwordAndDagger
	CasteCrossedSwords
	CasteCrossedAxes
	CasteShield
	CasteShieldCrossedSwords
	CasteShieldCrossedAxes
	CasteSimpleCrown
	CasteCrown
	CasteNiceCrown
	CasteEclipsedMoon
	CasteMoon
	CasteEclipsedSun
	CasteSun
	CasteComet
	numberOfCastes
)

func (c Caste) String() string {
	names := [...]string{
		"DAGGER", "DAGGER_WITH_HILT", "KRIS_KNIFE", "SWORD_AND_DAGGER",
		"CROSSED_SWORDS", "CROSSED_AXES", "SHIELD", "SHIELD_CROSSED_SWORDS",
		"SHIELD_CROSSED_AXES", "SIMPLE_CROWN", "CROWN", "NICE_CROWN",
		"ECLIPSED_MOON", "MOON", "ECLIPSED_SUN", "SUN", "COMET",
	}
	if int(c) < 0 || int(c) >= len(names) {
		return "UNKNOWN"
	}
	return names[c]
}

// NumberOfNormalCastes is rank.py's RankConstants.NUMBER_OF_NORMAL_CASTES.
const NumberOfNormalCastes = 12

// gamesPlayedPinCaste is rank.py's compare_rankings threshold: users at or
// below this games-played count are pinned to the bottom three castes
// regardless of points, independent of the percentile walk.
const gamesPlayedPinCaste = 3

// rankPercentages is rank.py's RANK_PERCENTAGES table verbatim.
var rankPercentages = [NumberOfNormalCastes]float64{
	0.00, 0.00, 0.00, 0.16, 0.15, 0.14,
	0.12, 0.11, 0.10, 0.09, 0.07, 0.06,
}

// specialTierOrder is the fixed draw order and size of rank.py's
// UserIndex special ranks: Comet(1), Sun(1), Eclipsed-Sun(1), Moon(2),
// Eclipsed-Moon(3) — TOTAL_NAMED_PLAYER_COUNT = 8.
var specialTierOrder = []struct {
	caste Caste
	count int
}{
	{CasteComet, 1},
	{CasteSun, 1},
	{CasteEclipsedSun, 1},
	{CasteMoon, 2},
	{CasteEclipsedMoon, 3},
}

// pinnedCaste implements the games-played pin: GAMES_PLAYED_DAGGER_CASTE=1,
// GAMES_PLAYED_DAGGER_WITH_HILT_CASTE=2, GAMES_PLAYED_KRIS_DAGGER_CASTE=3.
func pinnedCaste(gamesPlayed int64) (Caste, bool) {
	switch {
	case gamesPlayed <= 1:
		return CasteDagger, true
	case gamesPlayed == 2:
		return CasteDaggerWithHilt, true
	case gamesPlayed == gamesPlayedPinCaste:
		return CasteKrisKnife, true
	default:
		return 0, false
	}
}
