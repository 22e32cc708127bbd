package cowbytes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var (
	_ json.Marshaler   = CowBytes{}
	_ json.Unmarshaler = (*CowBytes)(nil)
)

// MarshalJSON encodes c the way encoding/json encodes any []byte: as a
// base64 string. An empty value encodes as "" rather than null.
func (c CowBytes) MarshalJSON() ([]byte, error) {
	b := c.Bytes()
	if b == nil {
		b = []byte{}
	}
	return json.Marshal(b)
}

// UnmarshalJSON accepts a base64 string or null. The decoded buffer is
// freshly allocated and is adopted as is.
func (c *CowBytes) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Own(nil)
		return nil
	}
	var b []byte
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("cowbytes: unmarshal json: %w", err)
	}
	*c = visit(inputByteBuf, "", b)
	return nil
}
