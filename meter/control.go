package meter

import (
	"sync"
	"time"

	"github.com/halvard/partymeter/event"
	"github.com/halvard/partymeter/itemdb"
	"github.com/halvard/partymeter/transport"
)

// Config carries the tunables and seed values the core accepts at
// startup (spec.md §1 Non-goals: no config file parsing here, this is
// the plain struct an external caller — cmd/partymeter or otherwise —
// populates and passes in). The trailing blank field guards against
// unkeyed struct literals elsewhere in the codebase, mirroring
// repparser.Config.
type Config struct {
	SelfName string
	SelfID   ActorID
	HaveSelf bool

	Mode Mode

	BattleTimeout time.Duration
	TickWindow    time.Duration
	HistorySize   int

	ItemDBPath string

	_ struct{}
}

// Engine is the single mutable-state owner the pipeline thread drives
// (spec.md §5): roster, session manager, and the published snapshot.
// The capture and pipeline threads are the only writers; readers only
// ever touch the published Snapshot pointer through RequestSnapshot.
type Engine struct {
	roster  *Roster
	session *SessionManager
	items   itemdb.Table

	weapons map[string]weaponRecord

	lastEndpoint    transport.Endpoint
	haveLastEnd     bool
	currentZoneName string

	counters counterSet

	snapMu   sync.RWMutex
	snapshot Snapshot
}

type weaponRecord struct {
	itemID uint32
	have   bool
}

type counterSet struct {
	captureDrop      func() uint64
	malformed        atomicCounter
	reassemblyFailed atomicCounter
	unknownTag       atomicCounter
	unknownEvent     atomicCounter
	deferredEvicted  atomicCounter
}

// atomicCounter is a plain counter; the pipeline thread is its only
// writer so no atomics are required, matching spec.md §5's "no lock is
// taken because no other thread touches this state".
type atomicCounter struct{ n uint64 }

func (c *atomicCounter) inc()        { c.n++ }
func (c *atomicCounter) get() uint64 { return c.n }

// NewEngine builds an Engine from Config, loading the optional item
// category table.
func NewEngine(cfg Config, captureDropTotal func() uint64) (*Engine, error) {
	items, err := itemdb.Load(cfg.ItemDBPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		roster:  NewRoster(cfg.SelfName, cfg.SelfID, cfg.HaveSelf),
		session: NewSessionManager(cfg.Mode, cfg.BattleTimeout, cfg.TickWindow, cfg.HistorySize),
		items:   items,
		weapons: make(map[string]weaponRecord),
	}
	e.counters.captureDrop = captureDropTotal
	if e.counters.captureDrop == nil {
		e.counters.captureDrop = func() uint64 { return 0 }
	}
	return e, nil
}

// SetMode implements the set_mode control input.
func (e *Engine) SetMode(mode Mode, now time.Time) { e.session.SetMode(mode, now) }

// ManualToggle implements the manual_toggle control input.
func (e *Engine) ManualToggle(now time.Time) { e.session.ManualToggle(now) }

// ArchiveNow implements the archive_now control input.
func (e *Engine) ArchiveNow(now time.Time) { e.session.ArchiveNow(now) }

// ResetFame implements the reset_fame control input.
func (e *Engine) ResetFame() { e.session.ResetFame() }

// SeedSelf implements the seed_self control input. If id was already
// accumulating deferred ticks under the old (or absent) self id, those
// ticks are replayed as backfill at their original timestamps, the same
// as a PlayerJoined resolving a pending id (spec.md §4.5, §8 scenario 1).
func (e *Engine) SeedSelf(name string, id ActorID, haveID bool) {
	backfill := e.roster.SeedSelf(name, id, haveID)
	e.replayBackfill(backfill)
}

// NoteMalformed records a Classifier-stage drop (spec.md §7).
func (e *Engine) NoteMalformed() { e.counters.malformed.inc() }

// NoteReassemblyFailed records a Reassembler-stage drop.
func (e *Engine) NoteReassemblyFailed() { e.counters.reassemblyFailed.inc() }

// NoteUnknownTag records a Decoder-stage partial-parse.
func (e *Engine) NoteUnknownTag() { e.counters.unknownTag.inc() }

// NoteDeferredEvicted records a Roster deferred-queue eviction.
func (e *Engine) NoteDeferredEvicted() { e.counters.deferredEvicted.inc() }

// ApplyEvent applies one domain event to roster/session state in the
// order the classifier emitted it (spec.md §4.4-§4.7). endpoint is the
// flow's server endpoint, used for Zone mode and the destination-port
// zone-change heuristic (spec.md §4.4).
func (e *Engine) ApplyEvent(ev event.Event, ts time.Time, endpoint transport.Endpoint) {
	e.maybeDetectZoneChange(endpoint, ts)

	switch v := ev.(type) {
	case event.HealthUpdate:
		e.applyHealthUpdate(v, ts)
	case event.PlayerJoined:
		e.applyPlayerJoined(v, ts)
	case event.PartyUpdate:
		e.applyPartyUpdate(v)
	case event.SelfIdentified:
		backfill := e.roster.SeedSelf(v.Name, ActorID(v.ActorID), true)
		e.replayBackfill(backfill)
	case event.ZoneChanged:
		e.applyZoneChange(v.Label, endpoint, ts)
	case event.CombatStateChange:
		e.applyCombatStateChange(v, ts)
	case event.FameGained:
		e.session.ApplyFame(v.Fame)
	case event.ItemEquipped:
		e.applyItemEquipped(v)
	case event.Unknown:
		e.counters.unknownEvent.inc()
	}
}

// maybeDetectZoneChange implements spec.md §4.4's port-change zone
// heuristic: a change in the flow's destination port versus the last
// observed one is itself evidence of a zone transition.
func (e *Engine) maybeDetectZoneChange(endpoint transport.Endpoint, ts time.Time) {
	if !e.haveLastEnd {
		e.lastEndpoint = endpoint
		e.haveLastEnd = true
		return
	}
	if endpoint.Port != e.lastEndpoint.Port {
		e.applyZoneChange("", endpoint, ts)
	}
	e.lastEndpoint = endpoint
}

func (e *Engine) applyZoneChange(label string, endpoint transport.Endpoint, ts time.Time) {
	e.roster.ApplyZoneChange()
	e.weapons = make(map[string]weaponRecord)
	e.currentZoneName = label
	e.session.OnZoneChange(endpoint, label, ts)
}

func (e *Engine) applyHealthUpdate(v event.HealthUpdate, ts time.Time) {
	var dmg, heal uint64
	if v.Delta < 0 {
		dmg = uint64(-v.Delta)
	} else {
		heal = uint64(v.Delta)
	}

	queueFull := len(e.roster.pending[ActorID(v.ActorID)]) >= deferredQueueCap
	name, ok := e.roster.Resolve(ActorID(v.ActorID), ts.UnixNano(), dmg, heal)
	if !ok {
		if queueFull {
			e.NoteDeferredEvicted()
		}
		return
	}
	e.session.ApplyAttributable(name, ts, dmg, heal)
}

func (e *Engine) applyPlayerJoined(v event.PlayerJoined, ts time.Time) {
	backfill := e.roster.ResolvePlayerJoined(ActorID(v.ActorID), v.Name)
	e.replayBackfill(backfill)
	if len(v.Items) > 0 {
		e.weapons[v.Name] = weaponRecord{itemID: v.Items[0], have: true}
	}
}

// replayBackfill applies buffered deferred ticks into the session at
// their original timestamps, in original order (spec.md §4.5 "late-join
// backfill", §8 property 7).
func (e *Engine) replayBackfill(backfill []Backfill) {
	for _, b := range backfill {
		e.session.ApplyAttributable(b.Name, time.Unix(0, b.TS), b.Dmg, b.Heal)
	}
}

func (e *Engine) applyPartyUpdate(v event.PartyUpdate) {
	if len(v.Names) == 0 {
		e.roster.ApplyPartyDisband()
		return
	}
	e.roster.ApplyPartyUpdate(v.Names)
}

func (e *Engine) applyCombatStateChange(v event.CombatStateChange, ts time.Time) {
	selfName, haveSelf := e.roster.SelfName()
	if !haveSelf {
		return
	}
	// A plain identity check, not a combat delta: use NameOf so a miss
	// here never buffers a bogus zero-damage deferred tick.
	if name, ok := e.roster.NameOf(ActorID(v.ActorID)); !ok || name != selfName {
		return
	}
	e.session.OnCombatStateChange(v.InCombat, ts)
}

func (e *Engine) applyItemEquipped(v event.ItemEquipped) {
	name, ok := e.roster.NameOf(ActorID(v.ActorID))
	if !ok {
		return
	}
	e.weapons[name] = weaponRecord{itemID: v.ItemID, have: true}
}

// Tick runs periodic, non-event-driven maintenance: the battle_timeout
// check (spec.md §4.6, §8 scenario 4). Call this once per pipeline
// loop iteration.
func (e *Engine) Tick(now time.Time) {
	e.session.CheckBattleTimeout(now)
}

// RequestSnapshot builds a fresh Snapshot and publishes it, then
// returns it (spec.md §6 control input request_snapshot). Snapshot
// readers call this directly; the RWMutex only serializes the publish
// against concurrent reads from other threads if the caller chooses to
// expose Snapshot() to a separate reader goroutine.
func (e *Engine) RequestSnapshot(now time.Time) Snapshot {
	counters := Counters{
		CaptureDropTotal:      e.counters.captureDrop(),
		MalformedTotal:        e.counters.malformed.get(),
		ReassemblyFailedTotal: e.counters.reassemblyFailed.get(),
		UnknownTagTotal:       e.counters.unknownTag.get(),
		UnknownEventTotal:     e.counters.unknownEvent.get(),
		DeferredEvictedTotal:  e.counters.deferredEvicted.get(),
	}

	snap := BuildSnapshot(e.session, e.currentZoneName, e.items, func(name string) (uint32, bool) {
		rec, ok := e.weapons[name]
		if !ok {
			return 0, false
		}
		return rec.itemID, rec.have
	}, counters, now)

	e.snapMu.Lock()
	e.snapshot = snap
	e.snapMu.Unlock()

	return snap
}

// Snapshot returns the most recently published snapshot without
// rebuilding it, safe for concurrent use from a separate reader
// goroutine (spec.md §5 "Snapshot reader").
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot
}
