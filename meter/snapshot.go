package meter

import (
	"time"

	"github.com/halvard/partymeter/itemdb"
)

// Counters surfaces every dropped-item counter from across the pipeline
// for observability (spec.md §7 "All dropped-item counters are exposed
// via the snapshot").
type Counters struct {
	CaptureDropTotal      uint64 `json:"capture_drop_total"`
	MalformedTotal        uint64 `json:"malformed_total"`
	ReassemblyFailedTotal uint64 `json:"reassembly_failed_total"`
	UnknownTagTotal       uint64 `json:"unknown_tag_total"`
	UnknownEventTotal     uint64 `json:"unknown_event_total"`
	DeferredEvictedTotal  uint64 `json:"deferred_evicted_total"`
}

// ActorView is one ranked actor's read-only projection (spec.md §4.8,
// §6).
type ActorView struct {
	Name           string  `json:"name"`
	Damage         uint64  `json:"damage"`
	Heal           uint64  `json:"heal"`
	DPS            float64 `json:"dps"`
	HPS            float64 `json:"hps"`
	WeaponCategory string  `json:"weapon,omitempty"`
	BarRatio       float64 `json:"bar_ratio"`
}

// HistoryEntry is one archived session's summary (spec.md §6).
type HistoryEntry struct {
	Label     string      `json:"label"`
	StartedAt int64       `json:"started_at"`
	EndedAt   int64       `json:"ended_at"`
	Actors    []ActorView `json:"actors"`
	Fame      uint64      `json:"fame"`
}

// Snapshot is the immutable, read-only view consumed by the UI and by
// JSON export (spec.md §4.8, §6). It is built fresh on every publish;
// nothing in it aliases live mutable session state.
type Snapshot struct {
	Mode        string         `json:"mode"`
	Zone        string         `json:"zone"`
	ElapsedS    float64        `json:"elapsed_s"`
	Fame        uint64         `json:"fame"`
	FamePerHour float64        `json:"fame_per_hour"`
	Actors      []ActorView    `json:"actors"`
	History     []HistoryEntry `json:"history"`
	Counters    Counters       `json:"counters"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func famePerHour(fame uint64, elapsedS float64) float64 {
	if elapsedS <= 0 {
		return 0
	}
	return float64(fame) / elapsedS * 3600
}

// weaponCategoryOf resolves an actor's main weapon item to a category
// label via itemdb, or "" if unknown/unavailable (spec.md §6, §4.8).
func weaponCategoryOf(items itemdb.Table, weaponItem uint32, haveWeapon bool) string {
	if !haveWeapon || items == nil {
		return ""
	}
	return items[weaponItem]
}

func actorViews(actors []RankedActor, weapon func(name string) string) []ActorView {
	var maxDamage uint64
	for _, a := range actors {
		if a.Damage > maxDamage {
			maxDamage = a.Damage
		}
	}

	views := make([]ActorView, len(actors))
	for i, a := range actors {
		ratio := 0.0
		if maxDamage > 0 {
			ratio = clamp01(float64(a.Damage) / float64(maxDamage))
		}
		views[i] = ActorView{
			Name:           a.Name,
			Damage:         a.Damage,
			Heal:           a.Heal,
			DPS:            a.DPS,
			HPS:            a.HPS,
			WeaponCategory: weapon(a.Name),
			BarRatio:       ratio,
		}
	}
	return views
}

// BuildSnapshot projects the live session (and roster/zone state) into
// an immutable Snapshot. It is allocation-light and never mutates
// session state beyond pruning the live session's tick windows, which it
// does first (spec.md §4.8).
func BuildSnapshot(mgr *SessionManager, zoneLabel string, items itemdb.Table, weaponItemOf func(name string) (uint32, bool), counters Counters, now time.Time) Snapshot {
	mgr.PruneWindows(now)

	sess := mgr.Current()

	snap := Snapshot{
		Mode:     mgr.CurrentMode().String(),
		Zone:     zoneLabel,
		Counters: counters,
	}

	if sess != nil {
		snap.ElapsedS = sess.ElapsedSeconds(now)
		snap.Fame = sess.Fame
		snap.FamePerHour = famePerHour(sess.Fame, snap.ElapsedS)

		ranked := make([]RankedActor, 0, len(sess.PerActor))
		for name, st := range sess.PerActor {
			dps, hps := st.rollingRates(mgr.TickWindow())
			ranked = append(ranked, RankedActor{
				Name: name, Damage: st.Damage, Heal: st.Heal, DPS: dps, HPS: hps,
			})
		}
		ranked = Rank(ranked, RankByDamage)

		snap.Actors = actorViews(ranked, func(name string) string {
			id, ok := weaponItemOf(name)
			return weaponCategoryOf(items, id, ok)
		})
	}

	for _, h := range mgr.History().Entries() {
		ranked := make([]RankedActor, 0, len(h.PerActor))
		for name, st := range h.PerActor {
			ranked = append(ranked, RankedActor{Name: name, Damage: st.Damage, Heal: st.Heal})
		}
		ranked = Rank(ranked, RankByDamage)

		snap.History = append(snap.History, HistoryEntry{
			Label:     h.Label,
			StartedAt: h.StartedAt.Unix(),
			EndedAt:   h.EndedAt.Unix(),
			Actors:    actorViews(ranked, func(string) string { return "" }),
			Fame:      h.Fame,
		})
	}

	return snap
}
