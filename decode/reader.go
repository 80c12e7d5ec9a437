// This file contains a byte-cursor reader used throughout the decode
// pipeline (classifier, payload decoder, transport command parsing).
package decode

import "encoding/binary"

// Reader aids reading data from a byte slice. All multi-byte values are
// big-endian, per the wire format described in spec.md §4.1 and §4.3.
//
// Reader does not bounds-check: a malformed or truncated message causes
// it to panic with a slice-bounds error. Callers at the pipeline
// boundary (decode.Classify, transport.ParseDatagram) recover from this
// and turn it into the appropriate non-fatal error kind (spec §7) — the
// same shield the teacher's parser uses around its whole parse pass.
type Reader struct {
	// B is the byte slice being read.
	B []byte

	// Pos is the index of the next byte to read.
	Pos int
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{B: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.B) - r.Pos
}

// Rest returns the remaining unread bytes without advancing Pos.
func (r *Reader) Rest() []byte {
	return r.B[r.Pos:]
}

// ReadByte returns the next byte.
func (r *Reader) ReadByte() (v byte) {
	v, r.Pos = r.B[r.Pos], r.Pos+1
	return
}

// ReadBool returns the next byte, non-zero meaning true.
func (r *Reader) ReadBool() bool {
	return r.ReadByte() != 0
}

// ReadInt8 returns the next byte as a signed 8-bit integer.
func (r *Reader) ReadInt8() int8 {
	return int8(r.ReadByte())
}

// ReadUint16 returns the next 2 bytes as a big-endian uint16.
func (r *Reader) ReadUint16() (v uint16) {
	v, r.Pos = binary.BigEndian.Uint16(r.B[r.Pos:]), r.Pos+2
	return
}

// ReadInt16 returns the next 2 bytes as a big-endian int16.
func (r *Reader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// ReadUint32 returns the next 4 bytes as a big-endian uint32.
func (r *Reader) ReadUint32() (v uint32) {
	v, r.Pos = binary.BigEndian.Uint32(r.B[r.Pos:]), r.Pos+4
	return
}

// ReadInt32 returns the next 4 bytes as a big-endian int32.
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadUint64 returns the next 8 bytes as a big-endian uint64.
func (r *Reader) ReadUint64() (v uint64) {
	v, r.Pos = binary.BigEndian.Uint64(r.B[r.Pos:]), r.Pos+8
	return
}

// ReadInt64 returns the next 8 bytes as a big-endian int64.
func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadFloat32 returns the next 4 bytes as a big-endian IEEE-754 float.
func (r *Reader) ReadFloat32() float32 {
	return float32FromBits(r.ReadUint32())
}

// ReadFloat64 returns the next 8 bytes as a big-endian IEEE-754 double.
func (r *Reader) ReadFloat64() float64 {
	return float64FromBits(r.ReadUint64())
}

// ReadString reads a length-prefixed (uint16) UTF-8 string.
func (r *Reader) ReadString() string {
	size := int(r.ReadUint16())
	v := string(r.B[r.Pos : r.Pos+size])
	r.Pos += size
	return v
}

// ReadSlice returns the next size bytes as a freshly copied slice, so
// callers may retain it beyond the lifetime of the source buffer.
func (r *Reader) ReadSlice(size int) []byte {
	v := make([]byte, size)
	r.Pos += copy(v, r.B[r.Pos:r.Pos+size])
	return v
}
