package cowbytes

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	_ msgpack.CustomEncoder = CowBytes{}
	_ msgpack.CustomDecoder = (*CowBytes)(nil)
)

// EncodeMsgpack writes c as a msgpack bin value.
func (c CowBytes) EncodeMsgpack(enc *msgpack.Encoder) error {
	b := c.Bytes()
	if b == nil {
		b = []byte{}
	}
	return enc.EncodeBytes(b)
}

// DecodeMsgpack reads a bin or str value, or nil as an empty sequence. Both
// DecodeBytes and DecodeString allocate, so their results are adopted.
func (c *CowBytes) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return fmt.Errorf("cowbytes: decode msgpack: %w", err)
	}

	switch {
	case code == msgpcode.Nil:
		if err := dec.DecodeNil(); err != nil {
			return fmt.Errorf("cowbytes: decode msgpack: %w", err)
		}
		*c = Own(nil)
	case msgpcode.IsString(code):
		s, err := dec.DecodeString()
		if err != nil {
			return fmt.Errorf("cowbytes: decode msgpack: %w", err)
		}
		*c = visit(inputString, s, nil)
	default:
		b, err := dec.DecodeBytes()
		if err != nil {
			return fmt.Errorf("cowbytes: decode msgpack: %w", err)
		}
		*c = visit(inputByteBuf, "", b)
	}
	return nil
}
