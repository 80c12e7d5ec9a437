package capture

import (
	"context"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/halvard/partymeter/transport"
)

// FileSource replays UDP payloads from a link-layer capture file,
// timestamped from the file itself (spec.md §2 stage 1, §6). Grounded
// on the pack's gopacket-based decoders (DynamEq6388-netcap,
// Gh0st0ne-netcap) for layer-decoding style, adapted from a
// multi-protocol decoder table down to "extract UDP payload, drop
// anything else".
type FileSource struct {
	runID uuid.UUID
	f     *os.File
	r     *pcapgo.Reader
}

// NewFileSource opens path as a pcap capture file for replay.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "capture: open replay file")
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "capture: read pcap header")
	}

	return &FileSource{runID: uuid.New(), f: f, r: r}, nil
}

// RunID implements Source.
func (s *FileSource) RunID() uuid.UUID { return s.runID }

// Close implements Source.
func (s *FileSource) Close() error { return s.f.Close() }

// Next implements Source, decoding each frame far enough to pull out
// its UDP payload and endpoints and dropping anything that isn't UDP
// over IPv4 (spec.md §6 "drops any non-UDP input at the Packet Source
// boundary").
func (s *FileSource) Next(ctx context.Context) (Packet, error) {
	for {
		select {
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		default:
		}

		data, ci, err := s.r.ReadPacketData()
		if err == io.EOF {
			return Packet{}, io.EOF
		}
		if err != nil {
			return Packet{}, errors.Wrap(err, "capture: read packet")
		}

		pkt, ok := decodeUDP(s.r.LinkType(), data)
		if !ok {
			continue
		}
		pkt.TS = ci.Timestamp
		return pkt, nil
	}
}

// decodeUDP extracts the UDP payload and endpoints from one raw frame,
// returning ok=false for anything that isn't IPv4/UDP.
func decodeUDP(linkType layers.LinkType, data []byte) (Packet, bool) {
	packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if ipLayer == nil || udpLayer == nil {
		return Packet{}, false
	}

	ip4, ok := ipLayer.(*layers.IPv4)
	if !ok {
		return Packet{}, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return Packet{}, false
	}

	var srcIP, dstIP [4]byte
	copy(srcIP[:], ip4.SrcIP.To4())
	copy(dstIP[:], ip4.DstIP.To4())

	payload := make([]byte, len(udp.Payload))
	copy(payload, udp.Payload)

	return Packet{
		Payload: payload,
		Src:     transport.Endpoint{IP: srcIP, Port: uint16(udp.SrcPort)},
		Dst:     transport.Endpoint{IP: dstIP, Port: uint16(udp.DstPort)},
	}, true
}
