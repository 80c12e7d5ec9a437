// This file implements the recursive-descent decoder over the
// type-tagged value tree described in spec.md §4.3. The tag dispatch
// table is a data-driven registry (spec.md §9 Design Note), the same
// idiom the teacher's command parser uses for its TypeID switch, just
// expressed as a map instead of a switch since the tag set here has no
// per-tag bespoke fields beyond "tag, then recursively-typed body".
package decode

import (
	"fmt"

	"github.com/halvard/partymeter/proto"
	"github.com/pkg/errors"
)

// ErrUnknownTag is returned (wrapped) when a tag byte does not appear in
// the tag table. It is recoverable: the caller keeps whatever was
// decoded so far and may dump the raw command body (spec.md §4.3, §7).
var ErrUnknownTag = errors.New("unknown tag")

// tagDecodeFunc decodes one value body, given that its tag byte has
// already been consumed.
type tagDecodeFunc func(r *Reader) (Value, error)

var tagDecoders = map[byte]tagDecodeFunc{}

func init() {
	tagDecoders[proto.TagIDNil] = func(r *Reader) (Value, error) { return Nil{}, nil }
	tagDecoders[proto.TagIDBool] = func(r *Reader) (Value, error) { return Bool(r.ReadBool()), nil }
	tagDecoders[proto.TagIDI8] = func(r *Reader) (Value, error) { return I8(r.ReadInt8()), nil }
	tagDecoders[proto.TagIDI16] = func(r *Reader) (Value, error) { return I16(r.ReadInt16()), nil }
	tagDecoders[proto.TagIDI32] = func(r *Reader) (Value, error) { return I32(r.ReadInt32()), nil }
	tagDecoders[proto.TagIDI64] = func(r *Reader) (Value, error) { return I64(r.ReadInt64()), nil }
	tagDecoders[proto.TagIDF32] = func(r *Reader) (Value, error) { return F32(r.ReadFloat32()), nil }
	tagDecoders[proto.TagIDF64] = func(r *Reader) (Value, error) { return F64(r.ReadFloat64()), nil }
	tagDecoders[proto.TagIDString] = func(r *Reader) (Value, error) { return String(r.ReadString()), nil }
	tagDecoders[proto.TagIDByteArray] = decodeByteArray
	tagDecoders[proto.TagIDStringArray] = decodeStringArray
	tagDecoders[proto.TagIDI32Array] = decodeI32Array
	tagDecoders[proto.TagIDCustom] = decodeCustom
	tagDecoders[proto.TagIDArray] = decodeArray
	tagDecoders[proto.TagIDObjectArray] = decodeObjectArray
	tagDecoders[proto.TagIDDict] = decodeDict
	tagDecoders[proto.TagIDDictionary] = decodeDictionary
}

func decodeByteArray(r *Reader) (Value, error) {
	size := int(r.ReadInt32())
	return Bytes(r.ReadSlice(size)), nil
}

func decodeStringArray(r *Reader) (Value, error) {
	count := int(r.ReadInt16())
	arr := make(StringArray, count)
	for i := range arr {
		arr[i] = r.ReadString()
	}
	return arr, nil
}

func decodeI32Array(r *Reader) (Value, error) {
	count := int(r.ReadInt32())
	arr := make(I32Array, count)
	for i := range arr {
		arr[i] = r.ReadInt32()
	}
	return arr, nil
}

func decodeCustom(r *Reader) (Value, error) {
	typeCode := r.ReadInt8()
	size := int(r.ReadInt16())
	return Custom{TypeCode: typeCode, Data: r.ReadSlice(size)}, nil
}

// decodeArray reads tag Array (121): count, then a single shared tag,
// then count raw values decoded under that tag.
func decodeArray(r *Reader) (Value, error) {
	count := int(r.ReadInt16())
	tagID := r.ReadByte()
	dec, ok := tagDecoders[tagID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTag, "array element tag 0x%x", tagID)
	}
	arr := make(Array, count)
	for i := range arr {
		v, err := dec(r)
		if err != nil {
			return arr[:i], err
		}
		arr[i] = v
	}
	return arr, nil
}

// decodeObjectArray reads tag ObjectArray (122): count, then count
// entries each carrying its own tag + data.
func decodeObjectArray(r *Reader) (Value, error) {
	count := int(r.ReadInt16())
	arr := make(ObjectArray, count)
	for i := range arr {
		v, err := decodeValue(r)
		if err != nil {
			return arr[:i], err
		}
		arr[i] = v
	}
	return arr, nil
}

// decodeDict reads tag Dict (68): count, then the key tag and value tag
// declared once, then count pairs decoded under those fixed tags.
func decodeDict(r *Reader) (Value, error) {
	count := int(r.ReadInt16())
	keyTagID := r.ReadByte()
	valTagID := r.ReadByte()
	keyDec, ok := tagDecoders[keyTagID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTag, "dict key tag 0x%x", keyTagID)
	}
	valDec, ok := tagDecoders[valTagID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTag, "dict value tag 0x%x", valTagID)
	}
	d := make(Dict, count)
	for i := 0; i < count; i++ {
		k, err := keyDec(r)
		if err != nil {
			return d, err
		}
		v, err := valDec(r)
		if err != nil {
			return d, err
		}
		d[k] = v
	}
	return d, nil
}

// decodeDictionary reads tag Dictionary (101): count, then count
// entries each with its own per-entry key and value tags.
func decodeDictionary(r *Reader) (Value, error) {
	count := int(r.ReadInt16())
	d := make(Dictionary, count)
	for i := 0; i < count; i++ {
		k, err := decodeValue(r)
		if err != nil {
			return d, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return d, err
		}
		d[k] = v
	}
	return d, nil
}

// decodeValue reads a tag byte and decodes the value body that follows.
func decodeValue(r *Reader) (Value, error) {
	tagID := r.ReadByte()
	dec, ok := tagDecoders[tagID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTag, "tag 0x%x", tagID)
	}
	return dec(r)
}

// DecodeParams decodes a top-level ParamMap: an i16 count followed by
// that many (u8 key, tagged value) pairs. On an unknown tag it returns
// the partial map built so far together with a wrapped ErrUnknownTag;
// cmd/partymeter then dumps the whole command body to the
// unknown-payload sink and moves on (spec.md §4.3, §7) — this is never
// fatal to the pipeline.
func DecodeParams(r *Reader) (ParamMap, error) {
	count := int(r.ReadInt16())
	params := make(ParamMap, count)
	for i := 0; i < count; i++ {
		key := r.ReadByte()
		v, err := decodeValue(r)
		if err != nil {
			return params, fmt.Errorf("param %d/%d (key %d): %w", i+1, count, key, err)
		}
		params[key] = v
	}
	return params, nil
}
