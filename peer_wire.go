package cowbytes

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// peerRequest is the record carried inside a peer service BytesValue:
//
//	message PeerRequest {
//	  string group = 1;
//	  string key   = 2;
//	  bytes  value = 3;
//	}
type peerRequest struct {
	group string
	key   string
	value CowBytes
}

const (
	fieldGroup protowire.Number = 1
	fieldKey   protowire.Number = 2
	fieldValue protowire.Number = 3
)

func (r peerRequest) marshal() *wrapperspb.BytesValue {
	size := protowire.SizeTag(fieldGroup) + protowire.SizeBytes(len(r.group)) +
		protowire.SizeTag(fieldKey) + protowire.SizeBytes(len(r.key)) +
		protowire.SizeTag(fieldValue) + r.value.WireSize()

	b := make([]byte, 0, size)
	b = protowire.AppendTag(b, fieldGroup, protowire.BytesType)
	b = protowire.AppendString(b, r.group)
	b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
	b = protowire.AppendString(b, r.key)
	b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
	b = r.value.AppendWire(b)
	return wrapperspb.Bytes(b)
}

// parsePeerRequest decodes m. Unknown fields are skipped; a missing value
// decodes as empty.
func parsePeerRequest(m *wrapperspb.BytesValue) (peerRequest, error) {
	var r peerRequest
	b := m.GetValue()
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return peerRequest{}, fmt.Errorf("cowbytes: peer request: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return peerRequest{}, fmt.Errorf("cowbytes: peer request: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		switch num {
		case fieldGroup, fieldKey:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return peerRequest{}, fmt.Errorf("cowbytes: peer request: %w", protowire.ParseError(n))
			}
			if num == fieldGroup {
				r.group = s
			} else {
				r.key = s
			}
			b = b[n:]
		case fieldValue:
			v, n, err := ConsumeWire(b)
			if err != nil {
				return peerRequest{}, err
			}
			r.value = v
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return peerRequest{}, fmt.Errorf("cowbytes: peer request: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}
