// This file contains the stock event builders for the parameter layouts
// documented in spec.md §4.4. They are not auto-registered: the
// dialect's actual (kind, code) values are unknown ahead of time (spec
// Open Question), so a caller (typically cmd/partymeter, or a test)
// wires these into a Registry against whatever codes its dialect uses,
// e.g.:
//
//	reg.Register(proto.MessageKindEvent, healthUpdateCode, event.BuildHealthUpdate)
package event

import (
	"github.com/halvard/partymeter/decode"
	"github.com/pkg/errors"
)

// ErrMissingParam indicates a required parameter key was absent from
// the decoded ParamMap.
var ErrMissingParam = errors.New("missing required param")

func requireInt(params decode.ParamMap, key byte) (int64, error) {
	v, ok := params[key]
	if !ok {
		return 0, errors.Wrapf(ErrMissingParam, "key %d", key)
	}
	n, ok := decode.Int(v)
	if !ok {
		return 0, errors.Errorf("param %d is not numeric", key)
	}
	return n, nil
}

func requireString(params decode.ParamMap, key byte) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", errors.Wrapf(ErrMissingParam, "key %d", key)
	}
	s, ok := decode.Str(v)
	if !ok {
		return "", errors.Errorf("param %d is not a string", key)
	}
	return s, nil
}

// BuildHealthUpdate implements spec.md §4.4's HealthUpdate: params
// {0: target_id, 2: value_delta, 6: actor_id}. When actor_id (key 6) is
// absent, target_id is used instead (self-heal fallback) — this is the
// spec's stated current policy; whether that should hold for all heals
// or only self-heals is an open question (spec.md §9), decided in favor
// of "always fall back" per DESIGN.md.
func BuildHealthUpdate(params decode.ParamMap) (Event, error) {
	target, err := requireInt(params, 0)
	if err != nil {
		return nil, err
	}
	delta, err := requireInt(params, 2)
	if err != nil {
		return nil, err
	}

	actor := target
	if a, ok := params[6]; ok {
		if n, ok := decode.Int(a); ok {
			actor = n
		}
	}

	return HealthUpdate{
		TargetID: uint32(target),
		ActorID:  uint32(actor),
		Delta:    delta,
	}, nil
}

// BuildPlayerJoined implements params {0: actor_id, 1: name, 40:
// item_ids[]}; index 0 of the item array is the main weapon.
func BuildPlayerJoined(params decode.ParamMap) (Event, error) {
	actor, err := requireInt(params, 0)
	if err != nil {
		return nil, err
	}
	name, err := requireString(params, 1)
	if err != nil {
		return nil, err
	}

	var items []uint32
	if v, ok := params[40]; ok {
		if arr, ok := v.(decode.I32Array); ok {
			items = make([]uint32, len(arr))
			for i, id := range arr {
				items[i] = uint32(id)
			}
		} else if arr, ok := v.(decode.Array); ok {
			items = make([]uint32, 0, len(arr))
			for _, elem := range arr {
				if n, ok := decode.Int(elem); ok {
					items = append(items, uint32(n))
				}
			}
		}
	}

	return PlayerJoined{ActorID: uint32(actor), Name: name, Items: items}, nil
}

// BuildPartyUpdate implements params {5: names[]}.
func BuildPartyUpdate(params decode.ParamMap) (Event, error) {
	v, ok := params[5]
	if !ok {
		return PartyUpdate{}, nil // empty list clears party (spec.md §4.4)
	}

	var names []string
	switch arr := v.(type) {
	case decode.StringArray:
		names = []string(arr)
	case decode.Array:
		names = make([]string, 0, len(arr))
		for _, elem := range arr {
			if s, ok := decode.Str(elem); ok {
				names = append(names, s)
			}
		}
	}
	return PartyUpdate{Names: names}, nil
}

// BuildSelfIdentified implements params {0: actor_id, 1: name}.
func BuildSelfIdentified(params decode.ParamMap) (Event, error) {
	actor, err := requireInt(params, 0)
	if err != nil {
		return nil, err
	}
	name, err := requireString(params, 1)
	if err != nil {
		return nil, err
	}
	return SelfIdentified{ActorID: uint32(actor), Name: name}, nil
}

// BuildCombatStateChange implements params {0: actor_id, 1: in_combat}.
func BuildCombatStateChange(params decode.ParamMap) (Event, error) {
	actor, err := requireInt(params, 0)
	if err != nil {
		return nil, err
	}
	v, ok := params[1]
	if !ok {
		return nil, errors.Wrap(ErrMissingParam, "key 1")
	}
	b, ok := v.(decode.Bool)
	if !ok {
		return nil, errors.New("param 1 is not a bool")
	}
	return CombatStateChange{ActorID: uint32(actor), InCombat: bool(b)}, nil
}

// BuildFameGained implements params {1: fame}.
func BuildFameGained(params decode.ParamMap) (Event, error) {
	fame, err := requireInt(params, 1)
	if err != nil {
		return nil, err
	}
	return FameGained{Fame: uint64(fame)}, nil
}

// BuildZoneChanged implements the explicit JoinWorld response path for
// ZoneChanged (spec.md §4.4): params {1: zone_name}. The label is
// optional — an absent key 1 still produces a valid zone transition
// with an empty label, since the destination-port heuristic in
// meter.Engine detects the same transition either way.
func BuildZoneChanged(params decode.ParamMap) (Event, error) {
	label := ""
	if v, ok := params[1]; ok {
		if s, ok := decode.Str(v); ok {
			label = s
		}
	}
	return ZoneChanged{Label: label}, nil
}

// BuildItemEquipped implements params {0: actor_id, 1: item_id}.
func BuildItemEquipped(params decode.ParamMap) (Event, error) {
	actor, err := requireInt(params, 0)
	if err != nil {
		return nil, err
	}
	item, err := requireInt(params, 1)
	if err != nil {
		return nil, err
	}
	return ItemEquipped{ActorID: uint32(actor), ItemID: uint32(item)}, nil
}
