// Package proto describes the low-level wire vocabulary of the
// reliable-UDP transport and the message kinds layered on top of it:
// command types, message kinds, and the payload type-tag table. Beyond
// its init-time tables, the only allocation is the synthesized value
// CommandTypeByID returns for an unknown ID.
package proto

import "fmt"

// Enum is the base / common part of the small lookup-table types below.
type Enum struct {
	// Name of the entity, e.g. "Reliable" or "Event".
	Name string
}

// String returns the string representation of the enum (the name).
func (e Enum) String() string {
	return e.Name
}

// unknownEnum constructs an Enum for an unrecognized ID, preserving it
// in the name so logs and dumps remain inspectable.
func unknownEnum(id any) Enum {
	return Enum{fmt.Sprintf("Unknown 0x%x", id)}
}

// CommandType identifies a command within a reliable-UDP datagram.
type CommandType struct {
	Enum

	// ID as it appears on the wire.
	ID byte
}

// Command type IDs (spec §4.1). Only these three are meaningful to the
// reassembler; everything else is dropped as UnknownCommandType.
const (
	CommandTypeIDUnreliable       byte = 6
	CommandTypeIDReliable         byte = 7
	CommandTypeIDReliableFragment byte = 8
)

// CommandTypes is the enumeration of recognized command types.
var CommandTypes = []*CommandType{
	{Enum{"Unreliable"}, CommandTypeIDUnreliable},
	{Enum{"Reliable"}, CommandTypeIDReliable},
	{Enum{"ReliableFragment"}, CommandTypeIDReliableFragment},
}

// Named command types.
var (
	CommandTypeUnreliable       = CommandTypes[0]
	CommandTypeReliable         = CommandTypes[1]
	CommandTypeReliableFragment = CommandTypes[2]
)

// CommandTypeByID returns the CommandType for the given wire ID. An
// unknown ID yields a synthesized "Unknown 0x.." type rather than an
// error; the caller (transport.ParseDatagram) counts and drops it.
func CommandTypeByID(id byte) *CommandType {
	for _, ct := range CommandTypes {
		if ct.ID == id {
			return ct
		}
	}
	return &CommandType{unknownEnum(id), id}
}

// MessageKind distinguishes the three logical message kinds carried
// inside a reassembled command body (spec §4.2).
type MessageKind struct {
	Enum

	// ID as it appears after the signature byte.
	ID byte
}

// Message kind / type IDs.
const (
	MessageTypeIDRequest  byte = 2
	MessageTypeIDResponse byte = 3
	MessageTypeIDEvent    byte = 4
)

// Signature is the leading byte that marks a command body as a protocol
// message, observed in the current dialect.
const Signature byte = 0xF3

// MessageKinds is the enumeration of recognized message kinds.
var MessageKinds = []*MessageKind{
	{Enum{"Request"}, MessageTypeIDRequest},
	{Enum{"Response"}, MessageTypeIDResponse},
	{Enum{"Event"}, MessageTypeIDEvent},
}

// Named message kinds.
var (
	MessageKindRequest  = MessageKinds[0]
	MessageKindResponse = MessageKinds[1]
	MessageKindEvent    = MessageKinds[2]
)

// MessageKindByID returns the MessageKind for the given wire ID, or nil
// if the type byte does not identify a recognized kind. Unlike
// CommandTypeByID, the classifier treats an unrecognized message_type as
// MalformedProtocolHeader (spec §4.2), so no synthesized value is
// returned here.
func MessageKindByID(id byte) *MessageKind {
	for _, mk := range MessageKinds {
		if mk.ID == id {
			return mk
		}
	}
	return nil
}
