package decode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/halvard/partymeter/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encoder is a minimal test-only mirror of the wire format Reader reads,
// used to build round-trip fixtures for DecodeParams (spec.md §8
// "round-trip: decode(encode(ParamMap)) = ParamMap for all recognized
// tags").
type encoder struct {
	buf []byte
}

func (e *encoder) byte(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) bool(v bool) {
	if v {
		e.byte(1)
	} else {
		e.byte(0)
	}
}

func (e *encoder) i16(v int16)   { e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v)) }
func (e *encoder) i32(v int32)   { e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v)) }
func (e *encoder) i64(v int64)   { e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v)) }
func (e *encoder) f32(v float32) { e.i32(int32(math.Float32bits(v))) }
func (e *encoder) f64(v float64) { e.i64(int64(math.Float64bits(v))) }

func (e *encoder) str(v string) {
	e.i16(int16(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) tagged(tag byte, body func()) {
	e.byte(tag)
	body()
}

func (e *encoder) params(entries map[byte]func()) []byte {
	e.i16(int16(len(entries)))
	for k, body := range entries {
		e.byte(k)
		body()
	}
	return e.buf
}

func TestDecodeParams_RoundTrip(t *testing.T) {
	e := &encoder{}
	raw := e.params(map[byte]func(){
		0: func() { e.tagged(proto.TagIDI32, func() { e.i32(12345) }) },
		1: func() { e.tagged(proto.TagIDString, func() { e.str("Alice") }) },
		2: func() { e.tagged(proto.TagIDBool, func() { e.bool(true) }) },
		3: func() { e.tagged(proto.TagIDF64, func() { e.f64(3.5) }) },
		4: func() { e.tagged(proto.TagIDI16, func() { e.i16(-7) }) },
		5: func() { e.tagged(proto.TagIDI64, func() { e.i64(-99999999) }) },
	})

	r := NewReader(raw)
	params, err := DecodeParams(r)
	require.NoError(t, err)

	require.Equal(t, I32(12345), params[0])
	require.Equal(t, String("Alice"), params[1])
	require.Equal(t, Bool(true), params[2])
	require.Equal(t, F64(3.5), params[3])
	require.Equal(t, I16(-7), params[4])
	require.Equal(t, I64(-99999999), params[5])
}

func TestDecodeParams_StringArrayAndI32Array(t *testing.T) {
	e := &encoder{}
	e.i16(2)

	e.byte(0)
	e.byte(proto.TagIDStringArray)
	e.i16(2)
	e.str("sword")
	e.str("shield")

	e.byte(1)
	e.byte(proto.TagIDI32Array)
	e.i32(3)
	e.i32(100)
	e.i32(200)
	e.i32(300)

	r := NewReader(e.buf)
	params, err := DecodeParams(r)
	require.NoError(t, err)

	assert.Equal(t, StringArray{"sword", "shield"}, params[0])
	assert.Equal(t, I32Array{100, 200, 300}, params[1])
}

func TestDecodeParams_ArrayAndObjectArray(t *testing.T) {
	e := &encoder{}
	e.i16(2)

	// tag 121 Array: count, shared tag, then raw values.
	e.byte(0)
	e.byte(proto.TagIDArray)
	e.i16(2)
	e.byte(proto.TagIDI32)
	e.i32(1)
	e.i32(2)

	// tag 122 ObjectArray: count, then full tag+value per entry.
	e.byte(1)
	e.byte(proto.TagIDObjectArray)
	e.i16(2)
	e.byte(proto.TagIDI32)
	e.i32(7)
	e.byte(proto.TagIDString)
	e.str("x")

	r := NewReader(e.buf)
	params, err := DecodeParams(r)
	require.NoError(t, err)

	assert.Equal(t, Array{I32(1), I32(2)}, params[0])
	assert.Equal(t, ObjectArray{I32(7), String("x")}, params[1])
}

func TestDecodeParams_DictAndDictionary(t *testing.T) {
	e := &encoder{}
	e.i16(2)

	// tag 68 Dict: count, key tag, value tag declared once, then pairs.
	e.byte(0)
	e.byte(proto.TagIDDict)
	e.i16(1)
	e.byte(proto.TagIDI32)
	e.byte(proto.TagIDString)
	e.i32(1)
	e.str("one")

	// tag 101 Dictionary: count, then per-entry tagged key/value.
	e.byte(1)
	e.byte(proto.TagIDDictionary)
	e.i16(1)
	e.byte(proto.TagIDI32)
	e.i32(2)
	e.byte(proto.TagIDString)
	e.str("two")

	r := NewReader(e.buf)
	params, err := DecodeParams(r)
	require.NoError(t, err)

	dict, ok := params[0].(Dict)
	require.True(t, ok)
	assert.Equal(t, String("one"), dict[I32(1)])

	dictionary, ok := params[1].(Dictionary)
	require.True(t, ok)
	assert.Equal(t, String("two"), dictionary[I32(2)])
}

func TestDecodeParams_UnknownTagIsRecoverable(t *testing.T) {
	// Written in a fixed order (not via e.params, whose map iteration
	// order is random) so key 0 always precedes the unknown tag.
	e := &encoder{}
	e.i16(2)
	e.byte(0)
	e.tagged(proto.TagIDI32, func() { e.i32(1) })
	e.byte(1)
	e.tagged(200, func() {}) // tag 200 is not in the table

	r := NewReader(e.buf)
	params, err := DecodeParams(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTag)
	// The entry decoded before hitting the unknown tag survives in the
	// partial map (spec.md §4.3).
	assert.Contains(t, params, byte(0))
}
