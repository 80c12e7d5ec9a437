package meter

import "sort"

// RankKey selects which field ranked actors are sorted by.
type RankKey int

const (
	RankByDamage RankKey = iota
	RankByHeal
	RankByDPS
	RankByHPS
)

// RankedActor is one actor's stats paired with its name for sorting
// (spec.md §4.7 "tie-break for ranking").
type RankedActor struct {
	Name   string
	Damage uint64
	Heal   uint64
	DPS    float64
	HPS    float64
}

func keyOf(a RankedActor, key RankKey) float64 {
	switch key {
	case RankByHeal:
		return float64(a.Heal)
	case RankByDPS:
		return a.DPS
	case RankByHPS:
		return a.HPS
	default:
		return float64(a.Damage)
	}
}

// Rank orders actors by key descending; ties break by total damage
// descending, then by name ascending (spec.md §4.7).
func Rank(actors []RankedActor, key RankKey) []RankedActor {
	out := make([]RankedActor, len(actors))
	copy(out, actors)
	sort.Slice(out, func(i, j int) bool {
		ki, kj := keyOf(out[i], key), keyOf(out[j], key)
		if ki != kj {
			return ki > kj
		}
		if out[i].Damage != out[j].Damage {
			return out[i].Damage > out[j].Damage
		}
		return out[i].Name < out[j].Name
	})
	return out
}
