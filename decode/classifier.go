// This file implements the Message Classifier (spec.md §4.2): it checks
// the protocol signature byte, dispatches on message_type, and builds
// the Request/Response/Event variant. On any malformed header the
// entire command is discarded; no error here ever panics past Classify.
package decode

import (
	"github.com/halvard/partymeter/proto"
	"github.com/pkg/errors"
)

// ErrMalformedHeader indicates the command body did not begin with the
// expected signature byte, or named an unrecognized message_type.
// Callers count it as malformed_total and drop the command (spec.md §7).
var ErrMalformedHeader = errors.New("malformed protocol header")

// Classify parses the classifier-level header of a reassembled command
// body (channel/reliable/seq are supplied by the transport layer and
// merged in by the caller) and decodes its ParamMap.
//
// It recovers from any panic raised by the underlying Reader (a
// truncated or corrupt body) and reports it as ErrMalformedHeader, so a
// single bad command never brings down the pipeline thread.
func Classify(body []byte) (msg *LogicalMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			msg, err = nil, errors.Wrapf(ErrMalformedHeader, "panic: %v", p)
		}
	}()

	r := NewReader(body)
	if r.Remaining() < 2 || r.ReadByte() != proto.Signature {
		return nil, ErrMalformedHeader
	}

	kind := proto.MessageKindByID(r.ReadByte())
	if kind == nil {
		return nil, ErrMalformedHeader
	}

	m := &LogicalMessage{Kind: kind}
	m.Code = r.ReadByte()

	switch kind.ID {
	case proto.MessageTypeIDResponse:
		m.ReturnCode = r.ReadInt16()
		m.DebugStr = r.ReadString()
	}

	params, perr := DecodeParams(r)
	m.Params = params
	if perr != nil {
		// Unknown tag: recoverable, keep the partial params (spec §4.3).
		return m, perr
	}

	return m, nil
}
