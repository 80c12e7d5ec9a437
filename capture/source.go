// Package capture implements the Packet Source stage (spec.md §2 stage
// 1, §6): a live-capture and a file-replay implementation, each
// yielding a stream of UDP payloads with their endpoints and
// timestamps. Neither implementation assumes anything about the
// protocol above UDP; non-UDP traffic is dropped at this boundary.
package capture

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/halvard/partymeter/transport"
)

// Packet is one observed UDP datagram.
type Packet struct {
	TS      time.Time
	Payload []byte
	Src     transport.Endpoint
	Dst     transport.Endpoint
}

// Source yields packets one at a time until exhausted or ctx is
// cancelled. Grounded on repparser.Decoder's small "give me the next
// unit of input" interface shape, adapted from section-at-a-time to
// packet-at-a-time.
type Source interface {
	// Next blocks until a packet is available, ctx is cancelled, or the
	// source is exhausted (io.EOF).
	Next(ctx context.Context) (Packet, error)

	// RunID identifies this capture invocation with a UUID generated when
	// the source is opened. It is not attached to unknown-payload dumps
	// (the sink tags its run directory with its own UUID) or to log lines.
	RunID() uuid.UUID

	// Close releases the underlying capture handle or file.
	Close() error
}
