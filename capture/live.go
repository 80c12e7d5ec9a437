package capture

import (
	"context"
	"io"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RecommendedBPFFilter is the filter recommended (not required) by
// spec.md §6 for live capture of this game's traffic.
const RecommendedBPFFilter = "udp and (port 5055 or port 5056 or port 5058)"

// LiveSource captures UDP payloads from a live network interface,
// timestamped from the wall clock (spec.md §2 stage 1, §6).
type LiveSource struct {
	runID  uuid.UUID
	handle *pcap.Handle
}

// NewLiveSource opens iface for live capture with the given BPF filter
// (pass "" to capture everything and rely on the UDP boundary drop).
func NewLiveSource(iface, bpfFilter string) (*LiveSource, error) {
	// A one-second read timeout lets Next return to its ctx check
	// periodically instead of blocking indefinitely on an idle interface.
	handle, err := pcap.OpenLive(iface, 65536, true, time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "capture: open live interface")
	}

	if bpfFilter != "" {
		if err := handle.SetBPFFilter(bpfFilter); err != nil {
			handle.Close()
			return nil, errors.Wrap(err, "capture: set BPF filter")
		}
	}

	return &LiveSource{runID: uuid.New(), handle: handle}, nil
}

// RunID implements Source.
func (s *LiveSource) RunID() uuid.UUID { return s.runID }

// Close implements Source.
func (s *LiveSource) Close() error {
	s.handle.Close()
	return nil
}

// Next implements Source.
func (s *LiveSource) Next(ctx context.Context) (Packet, error) {
	for {
		select {
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		default:
		}

		data, ci, err := s.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err == io.EOF {
			return Packet{}, io.EOF
		}
		if err != nil {
			return Packet{}, errors.Wrap(err, "capture: read live packet")
		}

		pkt, ok := decodeUDP(s.handle.LinkType(), data)
		if !ok {
			continue
		}
		if ci.Timestamp.IsZero() {
			pkt.TS = time.Now()
		} else {
			pkt.TS = ci.Timestamp
		}
		return pkt, nil
	}
}
