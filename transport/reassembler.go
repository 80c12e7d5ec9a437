// This file implements fragment reassembly for ReliableFragment commands
// (spec.md §4.1, §8 property 5). It is grounded on the pack's BSD-Right
// IP fragment reassembler (other_examples: firestige-Otus decoder
// reassembly.go) for its overall shape — per-flow state, a GC sweep on a
// ticker, and arena-size eviction of the oldest incomplete buffer — but
// adapted from IP-fragment offset/MF-bit semantics to this wire format's
// explicit sequence/fragment_count/fragment_number/fragment_offset/
// total_length fields, and from trim-on-overlap to mark-and-overwrite
// since spec.md requires duplicate fragments to simply overwrite the
// same range rather than defer to the first writer.
package transport

import (
	"sync"
	"time"

	"github.com/halvard/partymeter/decode"
	"github.com/halvard/partymeter/internal/bufpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrReassemblyFailed indicates a sequence's fragments disagree on
// total_length or fragment_count; the buffer is dropped (spec.md §4.1).
var ErrReassemblyFailed = errors.New("reassembly failed")

const (
	bufferTTL       = 30 * time.Second
	gcTick          = 5 * time.Second
	defaultArenaCap = 16 << 20 // 16 MiB, spec.md §5
)

// seqKey identifies one reassembly buffer within a flow.
type seqKey struct {
	flow FlowKey
	seq  int32
}

// reassemblyBuffer accumulates fragments for one (flow, sequence) pair.
type reassemblyBuffer struct {
	total     int32
	data      []byte
	received  []bool // one entry per fragment index
	fragCount int32
	lastSeen  time.Time
}

func (b *reassemblyBuffer) complete() bool {
	if b.fragCount == 0 {
		return false
	}
	for _, got := range b.received {
		if !got {
			return false
		}
	}
	return true
}

func (b *reassemblyBuffer) size() int {
	return len(b.data)
}

// Reassembler reassembles ReliableFragment commands into complete
// logical message bodies, one instance serving every flow (internally
// keyed per flow+sequence, matching spec.md's "one instance per flow"
// at the conceptual level while sharing the GC goroutine and arena cap).
type Reassembler struct {
	log *zap.Logger

	mu        sync.Mutex
	buffers   map[seqKey]*reassemblyBuffer
	order     []seqKey // insertion order, for oldest-eviction under the arena cap
	arenaUsed int
	arenaCap  int

	stopCh chan struct{}
}

// NewReassembler creates a Reassembler and starts its background GC
// sweep. Call Close to stop the sweep.
func NewReassembler(log *zap.Logger) *Reassembler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reassembler{
		log:      log,
		buffers:  make(map[seqKey]*reassemblyBuffer),
		arenaCap: defaultArenaCap,
		stopCh:   make(chan struct{}),
	}
	go r.gcLoop()
	return r
}

// Close stops the background GC sweep.
func (r *Reassembler) Close() {
	close(r.stopCh)
}

// ProcessFragment feeds one ReliableFragment command body for the given
// flow. It returns (body, true, nil) once every fragment for that
// sequence has arrived; otherwise (nil, false, nil) while more are
// expected, or (nil, false, err) on a non-fatal reassembly failure
// (spec.md §7: drop buffer, count, continue).
func (r *Reassembler) ProcessFragment(flow FlowKey, now time.Time, body []byte) (out []byte, complete bool, err error) {
	rd := decode.NewReader(body)
	if rd.Remaining() < 20 {
		return nil, false, errors.New("fragment header too short")
	}

	seq := rd.ReadInt32()
	fragCount := rd.ReadInt32()
	fragNumber := rd.ReadInt32()
	totalLength := rd.ReadInt32()
	fragOffset := rd.ReadInt32()
	fragBody := rd.Rest()

	if fragCount <= 0 || fragNumber < 0 || fragNumber >= fragCount {
		return nil, false, errors.New("fragment_number out of range")
	}
	if totalLength < 0 || fragOffset < 0 || int64(fragOffset)+int64(len(fragBody)) > int64(totalLength) {
		return nil, false, errors.New("fragment exceeds total_length")
	}

	key := seqKey{flow: flow, seq: seq}

	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[key]
	if !ok {
		buf = &reassemblyBuffer{
			total:     totalLength,
			data:      bufpool.Get(int(totalLength)),
			received:  make([]bool, fragCount),
			fragCount: fragCount,
		}
		r.registerLocked(key, buf)
	} else if buf.total != totalLength || int32(len(buf.received)) != fragCount {
		r.dropAndRecycleLocked(key, buf)
		r.log.Warn("reassembly failed: mismatched total_length",
			zap.Int32("seq", seq), zap.Int32("total_length", totalLength))
		return nil, false, ErrReassemblyFailed
	}

	buf.lastSeen = now
	// Duplicates overwrite the same range (spec.md §4.1).
	copy(buf.data[fragOffset:], fragBody)
	buf.received[fragNumber] = true

	if !buf.complete() {
		return nil, false, nil
	}

	result := buf.data
	r.dropLocked(key, buf)
	return result, true, nil
}

// registerLocked adds a new buffer, evicting the oldest incomplete one
// if the arena cap would be exceeded (spec.md §5).
func (r *Reassembler) registerLocked(key seqKey, buf *reassemblyBuffer) {
	for r.arenaUsed+buf.size() > r.arenaCap && len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		if ob, ok := r.buffers[oldest]; ok {
			r.log.Info("evicting oldest incomplete reassembly buffer under arena cap",
				zap.Int32("seq", oldest.seq))
			r.dropAndRecycleLocked(oldest, ob)
		}
	}
	r.buffers[key] = buf
	r.order = append(r.order, key)
	r.arenaUsed += buf.size()
}

func (r *Reassembler) dropLocked(key seqKey, buf *reassemblyBuffer) {
	if _, ok := r.buffers[key]; ok {
		delete(r.buffers, key)
		r.arenaUsed -= buf.size()
		for i, k := range r.order {
			if k == key {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// dropAndRecycleLocked drops an incomplete buffer and returns its
// backing array to the pool — safe here because, unlike the completion
// path, nothing else ever observes this buffer's data.
func (r *Reassembler) dropAndRecycleLocked(key seqKey, buf *reassemblyBuffer) {
	r.dropLocked(key, buf)
	bufpool.Put(buf.data)
}

func (r *Reassembler) gcLoop() {
	ticker := time.NewTicker(gcTick)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Reassembler) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []seqKey
	for k, buf := range r.buffers {
		if now.Sub(buf.lastSeen) > bufferTTL {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		r.dropAndRecycleLocked(k, r.buffers[k])
	}
	if len(expired) > 0 {
		r.log.Debug("reassembly GC swept expired buffers", zap.Int("count", len(expired)))
	}
}
