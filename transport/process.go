package transport

import (
	"time"

	"github.com/halvard/partymeter/proto"
)

// Result is a complete logical message body ready for the Message
// Classifier, together with the transport-level fields the classifier
// does not itself carry (spec.md §3 LogicalMessage.channel/reliable/seq).
type Result struct {
	Body     []byte
	Channel  byte
	Reliable bool
	Seq      uint16
}

// Process dispatches one parsed Command through the reassembler (for
// ReliableFragment) or passes it through unchanged (Unreliable,
// Reliable). It returns ok=false while a fragmented message is still
// incomplete, and a non-fatal error for a reassembly failure that the
// caller should count and continue past (spec.md §7).
func (r *Reassembler) Process(flow FlowKey, now time.Time, cmd Command) (res Result, ok bool, err error) {
	switch cmd.Type.ID {
	case proto.CommandTypeIDUnreliable:
		return Result{Body: cmd.Body, Channel: cmd.ChannelID, Reliable: false}, true, nil
	case proto.CommandTypeIDReliable:
		return Result{
			Body:     cmd.Body,
			Channel:  cmd.ChannelID,
			Reliable: true,
			Seq:      uint16(cmd.ReliableSeq),
		}, true, nil
	case proto.CommandTypeIDReliableFragment:
		body, complete, ferr := r.ProcessFragment(flow, now, cmd.Body)
		if ferr != nil {
			return Result{}, false, ferr
		}
		if !complete {
			return Result{}, false, nil
		}
		return Result{
			Body:     body,
			Channel:  cmd.ChannelID,
			Reliable: true,
			Seq:      uint16(cmd.ReliableSeq),
		}, true, nil
	default:
		return Result{}, false, ErrUnknownCommandType
	}
}
