package decode

import "github.com/halvard/partymeter/proto"

// LogicalMessage is a complete reassembled request/response/event,
// stripped of transport framing. Its lifetime is transient: it does not
// outlive the decode pass that produced it (spec.md §3).
type LogicalMessage struct {
	// Channel the command arrived on.
	Channel byte

	// Reliable tells whether the originating command was Reliable or
	// ReliableFragment (true) or Unreliable (false).
	Reliable bool

	// Seq is the reliable sequence number, 0 for unreliable commands.
	Seq uint16

	// Kind is the message kind (Request, Response, or Event).
	Kind *proto.MessageKind

	// Code is the operation/event code.
	Code byte

	// Params is the decoded payload.
	Params ParamMap

	// ReturnCode and DebugStr are only populated for Response messages.
	ReturnCode int16
	DebugStr   string
}
