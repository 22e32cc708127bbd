package cowbytes

import "encoding"

var (
	_ encoding.BinaryMarshaler   = CowBytes{}
	_ encoding.BinaryUnmarshaler = (*CowBytes)(nil)
)

// MarshalBinary returns the contained bytes. Framing is left to the caller,
// e.g. encoding/gob sends them as a length-prefixed byte slice.
func (c CowBytes) MarshalBinary() ([]byte, error) {
	return c.ByteSlice(), nil
}

// UnmarshalBinary replaces c with an Owned copy of data. Decoders are free
// to reuse data after the call returns, so it is never retained.
func (c *CowBytes) UnmarshalBinary(data []byte) error {
	*c = visit(inputBytes, "", data)
	return nil
}
