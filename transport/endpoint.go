// Package transport implements the reliable-UDP framing layer: parsing
// datagrams into commands, and reassembling fragmented reliable
// commands into complete logical message bodies (spec.md §4.1).
package transport

import "fmt"

// Endpoint identifies one side of a UDP conversation.
type Endpoint struct {
	IP   [4]byte
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", e.IP[0], e.IP[1], e.IP[2], e.IP[3], e.Port)
}

// FlowKey identifies one server connection, unordered with respect to
// which side is "source" (spec.md §3): (A, B) and (B, A) map to the
// same flow.
type FlowKey struct {
	a, b Endpoint
}

// NewFlowKey builds the canonical, order-independent key for the flow
// between src and dst.
func NewFlowKey(src, dst Endpoint) FlowKey {
	if endpointLess(dst, src) {
		return FlowKey{dst, src}
	}
	return FlowKey{src, dst}
}

func endpointLess(x, y Endpoint) bool {
	for i := range x.IP {
		if x.IP[i] != y.IP[i] {
			return x.IP[i] < y.IP[i]
		}
	}
	return x.Port < y.Port
}
