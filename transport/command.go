// This file parses the reliable-UDP datagram framing: a small datagram
// header followed by 1..N commands, each with its own header (spec.md
// §4.1). Grounded on the teacher's sliceReader/parseCommands byte-cursor
// loop — a length-prefixed block of variable-shape sub-records
// dispatched by a leading type byte — adapted to this wire format's
// explicit per-command length field instead of a single block-size byte.
package transport

import (
	"github.com/halvard/partymeter/decode"
	"github.com/halvard/partymeter/proto"
	"github.com/pkg/errors"
)

// ErrUnknownCommandType is returned for a command_type not in
// {Unreliable, Reliable, ReliableFragment}.
var ErrUnknownCommandType = errors.New("unknown command type")

// Command is one parsed command from within a UDP datagram.
type Command struct {
	Type        *proto.CommandType
	ChannelID   byte
	Flags       byte
	Reserved    byte
	ReliableSeq int32
	Body        []byte
}

// Datagram is the result of parsing one UDP payload's reliable-UDP
// framing.
type Datagram struct {
	PeerID     uint16
	CRCEnabled bool
	Commands   []Command
}

// ParseDatagram parses the datagram header and every command within it.
// A malformed datagram header returns an error and no commands. A
// command of unknown type is skipped and counted by the caller via the
// returned skipped count, matching spec.md §7's "drop command, count,
// continue" policy for UnknownCommandType. A command whose length runs
// past the end of the datagram stops parsing: the commands parsed so
// far are returned together with an error, and the unparsed ones are
// added to skipped.
func ParseDatagram(payload []byte) (dg Datagram, skipped int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic parsing datagram: %v", p)
		}
	}()

	r := decode.NewReader(payload)
	if r.Remaining() < 4 {
		return Datagram{}, 0, errors.New("datagram too short")
	}

	dg.PeerID = r.ReadUint16()
	dg.CRCEnabled = r.ReadBool()
	commandCount := int(r.ReadByte())

	for i := 0; i < commandCount && r.Remaining() >= 8; i++ {
		typeID := r.ReadByte()
		channelID := r.ReadByte()
		flags := r.ReadByte()
		reserved := r.ReadByte()
		length := r.ReadInt32()
		reliableSeq := r.ReadInt32()

		if length < 0 || int(length) > r.Remaining() {
			// Can't reliably locate the next command either; stop here.
			return dg, skipped + (commandCount - i), errors.New("command length exceeds datagram")
		}

		ct := proto.CommandTypeByID(typeID)
		body := r.ReadSlice(int(length))

		switch typeID {
		case proto.CommandTypeIDUnreliable, proto.CommandTypeIDReliable, proto.CommandTypeIDReliableFragment:
			dg.Commands = append(dg.Commands, Command{
				Type:        ct,
				ChannelID:   channelID,
				Flags:       flags,
				Reserved:    reserved,
				ReliableSeq: reliableSeq,
				Body:        body,
			})
		default:
			skipped++
		}
	}

	return dg, skipped, nil
}
