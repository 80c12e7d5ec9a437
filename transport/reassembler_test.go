package transport

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeFragment builds one ReliableFragment command body: {sequence,
// fragment_count, fragment_number, total_length, fragment_offset} all
// big-endian i32, followed by the fragment's bytes (spec.md §4.1).
func encodeFragment(seq, fragCount, fragNumber, totalLength, fragOffset int32, body []byte) []byte {
	buf := make([]byte, 20+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(seq))
	binary.BigEndian.PutUint32(buf[4:8], uint32(fragCount))
	binary.BigEndian.PutUint32(buf[8:12], uint32(fragNumber))
	binary.BigEndian.PutUint32(buf[12:16], uint32(totalLength))
	binary.BigEndian.PutUint32(buf[16:20], uint32(fragOffset))
	copy(buf[20:], body)
	return buf
}

func testFlow() FlowKey {
	return NewFlowKey(
		Endpoint{IP: [4]byte{10, 0, 0, 1}, Port: 1111},
		Endpoint{IP: [4]byte{10, 0, 0, 2}, Port: 5055},
	)
}

// property 5 (spec.md §8): for any fragmented message, the concatenation
// of successfully reassembled output equals the concatenation of
// fragment bodies in ascending fragment_number order, regardless of
// arrival order.
func TestReassembler_FragmentsOutOfOrder(t *testing.T) {
	r := NewReassembler(nil)
	defer r.Close()

	const fragSize = 4096 / 3
	full := make([]byte, 4096)
	for i := range full {
		full[i] = byte(i)
	}

	fragCount := int32(3)
	flow := testFlow()
	now := time.Now()

	var bodies [3][]byte
	offsets := []int32{0, fragSize, 2 * fragSize}
	ends := []int32{fragSize, 2 * fragSize, int32(len(full))}
	for i := 0; i < 3; i++ {
		bodies[i] = full[offsets[i]:ends[i]]
	}

	order := []int32{2, 0, 1}

	var out []byte
	var complete bool
	for _, idx := range order {
		body := encodeFragment(42, fragCount, idx, int32(len(full)), offsets[idx], bodies[idx])
		var err error
		out, complete, err = r.ProcessFragment(flow, now, body)
		require.NoError(t, err)
		if idx != order[len(order)-1] {
			assert.False(t, complete)
		}
	}

	require.True(t, complete)
	assert.Equal(t, full, out, "reassembled output must equal concatenation in fragment_number order")
}

func TestReassembler_MismatchedTotalLengthDropsBuffer(t *testing.T) {
	r := NewReassembler(nil)
	defer r.Close()

	flow := testFlow()
	now := time.Now()

	body1 := encodeFragment(7, 2, 0, 100, 0, make([]byte, 50))
	_, complete, err := r.ProcessFragment(flow, now, body1)
	require.NoError(t, err)
	require.False(t, complete)

	body2 := encodeFragment(7, 2, 1, 200, 50, make([]byte, 50))
	_, _, err = r.ProcessFragment(flow, now, body2)
	assert.ErrorIs(t, err, ErrReassemblyFailed)
}

func TestReassembler_DuplicateFragmentOverwrites(t *testing.T) {
	r := NewReassembler(nil)
	defer r.Close()

	flow := testFlow()
	now := time.Now()

	stale := []byte{0xFF, 0xFF}
	fresh := []byte{0x01, 0x02}

	_, _, err := r.ProcessFragment(flow, now, encodeFragment(1, 2, 0, 4, 0, stale))
	require.NoError(t, err)
	_, _, err = r.ProcessFragment(flow, now, encodeFragment(1, 2, 0, 4, 0, fresh))
	require.NoError(t, err)
	out, complete, err := r.ProcessFragment(flow, now, encodeFragment(1, 2, 1, 4, 2, []byte{0x03, 0x04}))
	require.NoError(t, err)
	require.True(t, complete)

	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, out)
}

func TestReassembler_OutOfRangeFragmentRejected(t *testing.T) {
	r := NewReassembler(nil)
	defer r.Close()

	flow := testFlow()
	now := time.Now()

	_, _, err := r.ProcessFragment(flow, now, encodeFragment(9, 2, 5, 10, 0, make([]byte, 5)))
	assert.Error(t, err)
}
