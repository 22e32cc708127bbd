package cowbytes

import "unsafe"

// input is the shape a decoder delivered a byte-array value in.
type input uint8

const (
	inputStr     input = iota // text still owned by the decoder
	inputString               // text handed over to us
	inputBytes                // bytes still owned by the decoder
	inputByteBuf              // bytes handed over to us
)

// visit turns whatever a decoder produced into an Owned CowBytes. Only
// values the decoder no longer references are adopted; everything else is
// copied because the decoder may reuse its buffer once we return.
func visit(kind input, s string, b []byte) CowBytes {
	switch kind {
	case inputStr:
		return Copy(stringBytes(s))
	case inputString:
		return Own(stringBytes(s))
	case inputBytes:
		return Copy(b)
	default:
		return Own(b)
	}
}

// stringBytes views s as a byte slice without allocating. The result shares
// memory with s and must never be written to.
func stringBytes(s string) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
