// Package event implements the Event Semantics Layer (spec.md §4.4): it
// maps known (message kind, code) combinations to domain events. Event
// is a closed interface with one concrete struct per recognized event,
// grounded on the teacher's repcmd.Cmd pattern (one struct per command
// type, dispatched from a table keyed by a small integer) rather than a
// dynamic lookup into the raw ParamMap (spec.md §9 Design Note).
package event

import (
	"github.com/halvard/partymeter/decode"
	"github.com/halvard/partymeter/proto"
)

// Event is implemented by every recognized domain event.
type Event interface {
	// Kind identifies which concrete event this is.
	Kind() Kind
}

// Kind enumerates the recognized event kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindHealthUpdate
	KindPlayerJoined
	KindPartyUpdate
	KindSelfIdentified
	KindZoneChanged
	KindCombatStateChange
	KindFameGained
	KindItemEquipped
)

func (k Kind) String() string {
	switch k {
	case KindHealthUpdate:
		return "HealthUpdate"
	case KindPlayerJoined:
		return "PlayerJoined"
	case KindPartyUpdate:
		return "PartyUpdate"
	case KindSelfIdentified:
		return "SelfIdentified"
	case KindZoneChanged:
		return "ZoneChanged"
	case KindCombatStateChange:
		return "CombatStateChange"
	case KindFameGained:
		return "FameGained"
	case KindItemEquipped:
		return "ItemEquipped"
	default:
		return "Unknown"
	}
}

// HealthUpdate reports a damage or heal delta (spec.md §4.4). A negative
// Delta is damage, a positive Delta is a heal.
type HealthUpdate struct {
	TargetID uint32
	ActorID  uint32
	Delta    int64
}

func (HealthUpdate) Kind() Kind { return KindHealthUpdate }

// PlayerJoined announces an actor's numeric id, name, and equipped
// items (index 0 of Items is the main weapon, spec.md §4.4).
type PlayerJoined struct {
	ActorID uint32
	Name    string
	Items   []uint32
}

func (PlayerJoined) Kind() Kind { return KindPlayerJoined }

// PartyUpdate replaces the party roster wholesale. An empty Names
// clears party down to just self (spec.md §4.4).
type PartyUpdate struct {
	Names []string
}

func (PartyUpdate) Kind() Kind { return KindPartyUpdate }

// SelfIdentified announces the local player's numeric id and name.
type SelfIdentified struct {
	ActorID uint32
	Name    string
}

func (SelfIdentified) Kind() Kind { return KindSelfIdentified }

// ZoneChanged signals a zone transition, detected either from an
// explicit JoinWorld response or from a change in observed server
// endpoint destination port (spec.md §4.4).
type ZoneChanged struct {
	Label string
}

func (ZoneChanged) Kind() Kind { return KindZoneChanged }

// CombatStateChange reports an actor entering or leaving combat. Only
// self transitions drive battle-mode session boundaries.
type CombatStateChange struct {
	ActorID  uint32
	InCombat bool
}

func (CombatStateChange) Kind() Kind { return KindCombatStateChange }

// FameGained accumulates into the current session's fame counter.
type FameGained struct {
	Fame uint64
}

func (FameGained) Kind() Kind { return KindFameGained }

// ItemEquipped reports a weapon/item change for an actor, used by the
// Snapshot Projector to resolve weapon_category (spec.md §4.8, §6).
type ItemEquipped struct {
	ActorID uint32
	ItemID  uint32
}

func (ItemEquipped) Kind() Kind { return KindItemEquipped }

// Unknown carries an unrecognized (kind, code) pair's raw params. It has
// no side effect on aggregation but may be persisted for offline
// analysis (spec.md §4.4).
type Unknown struct {
	MsgKind *proto.MessageKind
	Code    byte
	Raw     decode.ParamMap
}

func (Unknown) Kind() Kind { return KindUnknown }
