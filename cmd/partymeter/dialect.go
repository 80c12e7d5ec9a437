package main

import (
	"github.com/halvard/partymeter/event"
	"github.com/halvard/partymeter/proto"
)

// defaultDialectCodes maps this build's observed (kind, code) values to
// the stock event builders. The exact values are dialect-dependent and
// subject to patch-day changes (spec.md §9 Open Question: "The registry
// approach makes this configurable"); they are never hardcoded into the
// core packages, only here, so an operator can swap in a different set
// by editing this one file or building with a replacement.
var defaultDialectCodes = registerDefaults

// registerDefaults populates reg with this build's event-code table.
// Swap this function out (or the values below) when the observed
// dialect's codes change; nothing in event/, decode/, or meter/ needs
// to change alongside it.
func registerDefaults(reg *event.Registry) {
	reg.Register(proto.MessageKindEvent, 1, event.BuildHealthUpdate)
	reg.Register(proto.MessageKindEvent, 2, event.BuildPlayerJoined)
	reg.Register(proto.MessageKindEvent, 3, event.BuildPartyUpdate)
	reg.Register(proto.MessageKindEvent, 4, event.BuildSelfIdentified)
	reg.Register(proto.MessageKindEvent, 5, event.BuildCombatStateChange)
	reg.Register(proto.MessageKindEvent, 6, event.BuildFameGained)
	reg.Register(proto.MessageKindEvent, 7, event.BuildItemEquipped)

	// JoinWorld is a Response, not an Event, in this dialect (spec.md
	// §4.4's explicit-detection path for ZoneChanged, alongside the
	// destination-port heuristic in meter.Engine).
	reg.Register(proto.MessageKindResponse, 1, event.BuildZoneChanged)
}
