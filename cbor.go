package cowbytes

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	_ cbor.Marshaler   = CowBytes{}
	_ cbor.Unmarshaler = (*CowBytes)(nil)
)

const (
	cborMajorBytes = 2
	cborMajorText  = 3
	cborNull       = 0xf6
)

// MarshalCBOR writes c as a CBOR byte string (major type 2).
func (c CowBytes) MarshalCBOR() ([]byte, error) {
	b := c.Bytes()
	if b == nil {
		b = []byte{}
	}
	return cbor.Marshal(b)
}

// UnmarshalCBOR accepts a byte string, a text string or null. data belongs
// to the decoder; the values cbor.Unmarshal produces from it are fresh
// allocations and are adopted.
func (c *CowBytes) UnmarshalCBOR(data []byte) error {
	if len(data) == 1 && data[0] == cborNull {
		*c = Own(nil)
		return nil
	}

	if len(data) == 0 {
		return fmt.Errorf("cowbytes: unmarshal cbor: %w", io.ErrUnexpectedEOF)
	}

	switch data[0] >> 5 {
	case cborMajorBytes:
	case cborMajorText:
		var s string
		if err := cbor.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("cowbytes: unmarshal cbor: %w", err)
		}
		*c = visit(inputString, s, nil)
		return nil
	default:
		return &cbor.UnmarshalTypeError{CBORType: cborTypeName(data[0] >> 5), GoType: "cowbytes.CowBytes"}
	}

	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("cowbytes: unmarshal cbor: %w", err)
	}
	*c = visit(inputByteBuf, "", b)
	return nil
}

func cborTypeName(major byte) string {
	switch major {
	case 0:
		return "positive integer"
	case 1:
		return "negative integer"
	case 4:
		return "array"
	case 5:
		return "map"
	case 6:
		return "tag"
	default:
		return "primitives"
	}
}
