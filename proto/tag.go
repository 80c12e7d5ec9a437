package proto

// Tag identifies the wire representation of one Value within a ParamMap
// (spec §4.3). The tag set is small and closed; unrecognized tags are
// handled by the decoder, not by this table (Tag itself only names what
// is known).
type Tag struct {
	Enum

	// ID as it appears on the wire.
	ID byte
}

// Tag IDs, as observed in the dialect described by spec.md §4.3.
const (
	TagIDNil          byte = 0
	TagIDDict         byte = 68
	TagIDStringArray  byte = 97
	TagIDI8           byte = 98
	TagIDCustom       byte = 99
	TagIDF64          byte = 100
	TagIDDictionary   byte = 101
	TagIDI32Array     byte = 104
	TagIDI64          byte = 105
	TagIDI16          byte = 107
	TagIDI32          byte = 108
	TagIDF32          byte = 109
	TagIDBool         byte = 111
	TagIDString       byte = 115
	TagIDByteArray    byte = 120
	TagIDArray        byte = 121
	TagIDObjectArray  byte = 122
)

// Tags is the enumeration of recognized value tags.
var Tags = []*Tag{
	{Enum{"Nil"}, TagIDNil},
	{Enum{"Dict"}, TagIDDict},
	{Enum{"StringArray"}, TagIDStringArray},
	{Enum{"I8"}, TagIDI8},
	{Enum{"Custom"}, TagIDCustom},
	{Enum{"F64"}, TagIDF64},
	{Enum{"Dictionary"}, TagIDDictionary},
	{Enum{"I32Array"}, TagIDI32Array},
	{Enum{"I64"}, TagIDI64},
	{Enum{"I16"}, TagIDI16},
	{Enum{"I32"}, TagIDI32},
	{Enum{"F32"}, TagIDF32},
	{Enum{"Bool"}, TagIDBool},
	{Enum{"String"}, TagIDString},
	{Enum{"ByteArray"}, TagIDByteArray},
	{Enum{"Array"}, TagIDArray},
	{Enum{"ObjectArray"}, TagIDObjectArray},
}

// TagByID returns the Tag for the given wire ID, or nil if unrecognized.
// The payload decoder does not call it; it dispatches on its own
// tag-to-decoder table and reports unlisted tags as UnknownTag.
func TagByID(id byte) *Tag {
	for _, t := range Tags {
		if t.ID == id {
			return t
		}
	}
	return nil
}
