package cowbytes

import "google.golang.org/protobuf/types/known/wrapperspb"

// Proto wraps the contained bytes in a BytesValue without copying them.
// The message must be treated as read-only while c is Borrowed.
func (c CowBytes) Proto() *wrapperspb.BytesValue {
	return wrapperspb.Bytes(c.Bytes())
}

// FromProto adopts the value of a decoded message. proto.Unmarshal gives
// every message its own copy of a bytes field, so the allocation is taken
// over rather than copied again and m must not be used afterwards. A nil
// message yields an empty Owned value.
func FromProto(m *wrapperspb.BytesValue) CowBytes {
	return visit(inputByteBuf, "", m.GetValue())
}
