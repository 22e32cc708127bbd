package cowbytes

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// AppendWire appends c to dst as a protobuf length-delimited value: a varint
// length followed by the raw bytes.
func (c CowBytes) AppendWire(dst []byte) []byte {
	return protowire.AppendBytes(dst, c.Bytes())
}

// WireSize returns the number of bytes AppendWire would append.
func (c CowBytes) WireSize() int {
	return protowire.SizeBytes(c.Len())
}

// ConsumeWire decodes a length-delimited value from the front of src and
// reports how many bytes it used. The result is Owned; src may be reused as
// soon as ConsumeWire returns.
func ConsumeWire(src []byte) (CowBytes, int, error) {
	v, n := protowire.ConsumeBytes(src)
	if n < 0 {
		return CowBytes{}, 0, fmt.Errorf("cowbytes: consume wire: %w", protowire.ParseError(n))
	}
	return visit(inputBytes, "", v), n, nil
}
