// This file implements the event registry (spec.md §9 Design Note:
// "Registry of event codes → a data-driven table... Adding a new event
// is a table entry, not a new type"). The exact (kind, code) values are
// dialect-dependent and subject to patch-day changes (spec.md §9 Open
// Question), so they are never hardcoded here — callers register their
// own dialect's table via Register.
package event

import (
	"github.com/halvard/partymeter/decode"
	"github.com/halvard/partymeter/proto"
)

// Builder turns a decoded ParamMap into a concrete Event. It must not
// mutate params.
type Builder func(params decode.ParamMap) (Event, error)

// RegistryKey identifies one (message kind, code) combination.
type RegistryKey struct {
	Kind *proto.MessageKind
	Code byte
}

// Registry holds the active code → builder table. It is safe to read
// concurrently once population (Register calls) is complete; the
// pipeline thread is the only writer and it always finishes
// registration before processing begins.
type Registry struct {
	builders map[RegistryKey]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[RegistryKey]Builder)}
}

// Register adds or replaces the builder for one (kind, code) pair.
func (r *Registry) Register(kind *proto.MessageKind, code byte, b Builder) {
	r.builders[RegistryKey{Kind: kind, Code: code}] = b
}

// Build looks up and invokes the builder for (kind, code). Unrecognized
// pairs yield an Unknown event with no error (spec.md §4.4): this is
// never a pipeline failure, just an unmodeled message.
func (r *Registry) Build(kind *proto.MessageKind, code byte, params decode.ParamMap) (Event, error) {
	b, ok := r.builders[RegistryKey{Kind: kind, Code: code}]
	if !ok {
		return Unknown{MsgKind: kind, Code: code, Raw: params}, nil
	}
	return b(params)
}
