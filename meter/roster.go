// Package meter implements the stateful half of the pipeline: identity
// resolution, session lifecycle, running aggregates, and the read-only
// snapshot projection. It has no teacher analogue as a whole package —
// the source repo never resolves identities or aggregates over time —
// so its types are built directly from spec.md §4.5-§4.8, expressed in
// the teacher's general code texture: small structs, small mutation
// methods, doc comments stating the invariant rather than the reason.
package meter

const deferredQueueCap = 256

// ActorID is the engine's numeric entity id. It is not globally unique
// across zones and must be cleared on zone change.
type ActorID uint32

// deferredTick is one buffered, not-yet-attributable combat delta.
type deferredTick struct {
	ts   int64 // unix nanos
	dmg  uint64
	heal uint64
}

// Roster tracks the self identity, current party, and the
// actor-id-to-name mapping that gates aggregation (spec.md §4.5).
type Roster struct {
	selfID   ActorID
	haveSelf bool
	selfName string

	party map[string]struct{}

	idToName map[ActorID]string
	pending  map[ActorID][]deferredTick
}

// NewRoster returns an empty Roster, optionally seeded with a starting
// self identity from configuration (spec.md §4.5 "Seeding"). Either
// argument may be zero-valued to leave that part unseeded.
func NewRoster(selfName string, selfID ActorID, haveSelfID bool) *Roster {
	r := &Roster{
		party:    make(map[string]struct{}),
		idToName: make(map[ActorID]string),
		pending:  make(map[ActorID][]deferredTick),
	}
	if selfName != "" {
		r.selfName = selfName
		r.party[selfName] = struct{}{}
	}
	if haveSelfID {
		r.selfID = selfID
		r.haveSelf = true
	}
	return r
}

// SelfName returns the current self name, and whether it is set.
func (r *Roster) SelfName() (string, bool) {
	return r.selfName, r.selfName != ""
}

// InParty reports whether name is a current party member (self included
// once seeded).
func (r *Roster) InParty(name string) bool {
	_, ok := r.party[name]
	return ok
}

// SeedSelf overrides the self identity, e.g. from configuration, an
// operator control input, or an observed SelfIdentified event. An empty
// name or haveID=false leaves that part unchanged. Like
// ResolvePlayerJoined, establishing an id that already has buffered
// deferred ticks replays them as backfill — self resolves unconditionally
// (spec.md §4.5 rule 1), so the id's pending queue is always flushed,
// not just when a party check passes (spec.md §8 scenario 1).
func (r *Roster) SeedSelf(name string, id ActorID, haveID bool) []Backfill {
	if name != "" {
		r.setSelfName(name)
	}
	if !haveID {
		return nil
	}
	r.selfID = id
	r.haveSelf = true
	return r.flushPending(id, r.selfName)
}

func (r *Roster) setSelfName(name string) {
	if r.selfName != "" {
		delete(r.party, r.selfName)
	}
	r.selfName = name
	r.party[name] = struct{}{}
}

// resolution is the outcome of resolving an ActorID to a gated name.
type resolution struct {
	name     string
	accepted bool
	deferred bool
}

// NameOf returns the resolved, party-gated name for id without
// buffering anything on a miss (used by callers, like weapon tracking,
// that want a best-effort lookup rather than deferred-queue semantics).
func (r *Roster) NameOf(id ActorID) (string, bool) {
	res := r.resolve(id)
	return res.name, res.accepted
}

// resolve implements spec.md §4.5's three-step name resolution: self,
// then a party-gated id_to_name hit, then deferred. A known id whose
// name isn't (or isn't yet) in the party also falls through to
// deferred, not a silent drop. Its buffered ticks are replayed only by a
// later ResolvePlayerJoined for that id once the name is in the party;
// ApplyPartyUpdate replays nothing, and drops them if the new party
// does not include the name.
func (r *Roster) resolve(id ActorID) resolution {
	if r.haveSelf && id == r.selfID {
		return resolution{name: r.selfName, accepted: true}
	}
	if name, ok := r.idToName[id]; ok && r.InParty(name) {
		return resolution{name: name, accepted: true}
	}
	return resolution{deferred: true}
}

// deferTick buffers a not-yet-attributable tick for id, evicting the oldest
// buffered tick for that id if the per-id cap is exceeded (spec.md §7
// DeferredQueueFull policy).
func (r *Roster) deferTick(id ActorID, ts int64, dmg, heal uint64) {
	q := r.pending[id]
	if len(q) >= deferredQueueCap {
		q = q[1:]
	}
	q = append(q, deferredTick{ts: ts, dmg: dmg, heal: heal})
	r.pending[id] = q
}

// Backfill is one buffered tick replayed once its actor is resolved, in
// original timestamp order (spec.md §4.5 "late-join backfill", §8
// property 7).
type Backfill struct {
	Name string
	TS   int64
	Dmg  uint64
	Heal uint64
}

// ResolvePlayerJoined records id → name and, if name is a current party
// member, returns the buffered deferred ticks for id as backfill events
// in original order, clearing them from the pending queue.
func (r *Roster) ResolvePlayerJoined(id ActorID, name string) []Backfill {
	r.idToName[id] = name
	if !r.InParty(name) {
		return nil
	}
	return r.flushPending(id, name)
}

// flushPending drains id's buffered deferred ticks into backfill events
// attributed to name, in original order, clearing the pending queue for
// id. Returns nil if nothing was buffered.
func (r *Roster) flushPending(id ActorID, name string) []Backfill {
	q := r.pending[id]
	if len(q) == 0 {
		return nil
	}
	delete(r.pending, id)

	out := make([]Backfill, len(q))
	for i, t := range q {
		out[i] = Backfill{Name: name, TS: t.ts, Dmg: t.dmg, Heal: t.heal}
	}
	return out
}

// ApplyPartyUpdate replaces the party set wholesale (spec.md §4.4). An
// empty names list clears the party back down to just self. Deferred
// ticks for ids that no longer map to a party member are dropped.
func (r *Roster) ApplyPartyUpdate(names []string) {
	r.party = make(map[string]struct{}, len(names)+1)
	for _, n := range names {
		r.party[n] = struct{}{}
	}
	if r.selfName != "" {
		r.party[r.selfName] = struct{}{}
	}
	r.dropStalePending()
}

// ApplyPartyDisband resets the party to just self (spec.md §4.4, §9).
func (r *Roster) ApplyPartyDisband() {
	r.ApplyPartyUpdate(nil)
}

func (r *Roster) dropStalePending() {
	for id, name := range r.idToName {
		if !r.InParty(name) {
			delete(r.pending, id)
		}
	}
}

// ApplyZoneChange clears id_to_name and all deferred state but preserves
// self and party (spec.md §4.5, §8 invariant 4).
func (r *Roster) ApplyZoneChange() {
	r.idToName = make(map[ActorID]string)
	r.pending = make(map[ActorID][]deferredTick)
}

// Resolve attempts to resolve a HealthUpdate's actor to a gated name. If
// the actor cannot yet be resolved it is buffered and ok=false is
// returned; the caller should not aggregate this tick now.
func (r *Roster) Resolve(id ActorID, ts int64, dmg, heal uint64) (name string, ok bool) {
	res := r.resolve(id)
	if res.accepted {
		return res.name, true
	}
	if res.deferred {
		r.deferTick(id, ts, dmg, heal)
	}
	return "", false
}
