package cowbytes

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type record struct {
	Name string   `json:"name" msgpack:"name" cbor:"name"`
	Data CowBytes `json:"data" msgpack:"data" cbor:"data"`
}

func samples() [][]byte {
	large := make([]byte, 70000)
	for i := range large {
		large[i] = byte(i)
	}
	return [][]byte{{}, {1, 2, 3, 4}, []byte("hello"), large}
}

func TestJSONRoundTrip(t *testing.T) {
	for _, src := range samples() {
		in := record{Name: "r", Data: Borrow(src)}
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var out record
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !out.Data.IsOwned() {
			t.Fatal("decoded value should be owned")
		}
		if !out.Data.EqualBytes(src) {
			t.Fatalf("len %d: content mismatch", len(src))
		}
	}
}

func TestJSONMatchesPlainBytes(t *testing.T) {
	src := []byte{0, 1, 254, 255}
	got, err := json.Marshal(Copy(src))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want, _ := json.Marshal(src)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	empty, err := json.Marshal(CowBytes{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(empty) != `""` {
		t.Fatalf("empty value encoded as %s", empty)
	}
}

func TestJSONNullAndErrors(t *testing.T) {
	var v CowBytes
	if err := json.Unmarshal([]byte("null"), &v); err != nil {
		t.Fatalf("Unmarshal(null) failed: %v", err)
	}
	if !v.IsOwned() || v.Len() != 0 {
		t.Fatal("null should decode to an empty owned value")
	}

	var typeErr *json.UnmarshalTypeError
	if err := json.Unmarshal([]byte("42"), &v); !errors.As(err, &typeErr) {
		t.Fatalf("expected UnmarshalTypeError, got %v", err)
	}
	if err := json.Unmarshal([]byte(`"not base64!"`), &v); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	for _, src := range samples() {
		data, err := msgpack.Marshal(record{Name: "r", Data: Borrow(src)})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var out record
		if err := msgpack.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !out.Data.IsOwned() || !out.Data.EqualBytes(src) {
			t.Fatalf("len %d: bad round trip", len(src))
		}
	}
}

func TestMsgpackAcceptsStrAndNil(t *testing.T) {
	data, err := msgpack.Marshal("text payload")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var v CowBytes
	if err := msgpack.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal(str) failed: %v", err)
	}
	if !v.IsOwned() || v.String() != "text payload" {
		t.Fatalf("str decoded to %q", v.String())
	}

	data, err = msgpack.Marshal(nil)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := msgpack.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal(nil) failed: %v", err)
	}
	if !v.IsOwned() || v.Len() != 0 {
		t.Fatal("nil should decode to an empty owned value")
	}

	data, err = msgpack.Marshal(12)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := msgpack.Unmarshal(data, &v); err == nil {
		t.Fatal("expected error decoding an integer")
	}
}

func TestMsgpackDecodeDoesNotAliasInput(t *testing.T) {
	data, err := msgpack.Marshal(Borrow([]byte("abc")))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var v CowBytes
	if err := msgpack.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	if v.String() != "abc" {
		t.Fatalf("decoded value changed with its source: %q", v.String())
	}
}

func TestCBORRoundTrip(t *testing.T) {
	for _, src := range samples() {
		data, err := cbor.Marshal(record{Name: "r", Data: Borrow(src)})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var out record
		if err := cbor.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !out.Data.IsOwned() || !out.Data.EqualBytes(src) {
			t.Fatalf("len %d: bad round trip", len(src))
		}
	}
}

func TestCBORInputShapes(t *testing.T) {
	data, err := cbor.Marshal("text payload")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var v CowBytes
	if err := cbor.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal(text) failed: %v", err)
	}
	if !v.IsOwned() || v.String() != "text payload" {
		t.Fatalf("text decoded to %q", v.String())
	}

	if err := cbor.Unmarshal([]byte{0xf6}, &v); err != nil {
		t.Fatalf("Unmarshal(null) failed: %v", err)
	}
	if !v.IsOwned() || v.Len() != 0 {
		t.Fatal("null should decode to an empty owned value")
	}

	data, err = cbor.Marshal([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var typeErr *cbor.UnmarshalTypeError
	if err := cbor.Unmarshal(data, &v); !errors.As(err, &typeErr) {
		t.Fatalf("expected UnmarshalTypeError for an array, got %v", err)
	}
}

func TestWireRoundTrip(t *testing.T) {
	for _, src := range samples() {
		in := Borrow(src)
		buf := in.AppendWire([]byte{0xAA})
		if len(buf) != 1+in.WireSize() {
			t.Fatalf("WireSize = %d, appended %d", in.WireSize(), len(buf)-1)
		}

		out, n, err := ConsumeWire(buf[1:])
		if err != nil {
			t.Fatalf("ConsumeWire failed: %v", err)
		}
		if n != len(buf)-1 {
			t.Fatalf("consumed %d of %d bytes", n, len(buf)-1)
		}
		if !out.IsOwned() || !out.EqualBytes(src) {
			t.Fatalf("len %d: bad round trip", len(src))
		}
	}
}

func TestWireMatchesProtobufBytesField(t *testing.T) {
	msg := wrapperspb.Bytes([]byte("wire"))
	raw, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("proto.Marshal failed: %v", err)
	}

	num, typ, n := protowire.ConsumeTag(raw)
	if n < 0 || num != 1 || typ != protowire.BytesType {
		t.Fatalf("unexpected tag %d/%d", num, typ)
	}
	v, _, err := ConsumeWire(raw[n:])
	if err != nil {
		t.Fatalf("ConsumeWire failed: %v", err)
	}
	if v.String() != "wire" {
		t.Fatalf("got %q", v.String())
	}
}

func TestWireTruncated(t *testing.T) {
	buf := Borrow([]byte("truncated")).AppendWire(nil)
	if _, _, err := ConsumeWire(buf[:len(buf)-1]); err == nil {
		t.Fatal("expected error for truncated input")
	}
	if _, _, err := ConsumeWire(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestProtoConversion(t *testing.T) {
	src := []byte("proto")
	msg := Borrow(src).Proto()
	raw, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("proto.Marshal failed: %v", err)
	}

	decoded := &wrapperspb.BytesValue{}
	if err := proto.Unmarshal(raw, decoded); err != nil {
		t.Fatalf("proto.Unmarshal failed: %v", err)
	}
	v := FromProto(decoded)
	if !v.IsOwned() || !v.EqualBytes(src) {
		t.Fatal("FromProto should yield the owned payload")
	}

	if empty := FromProto(nil); !empty.IsOwned() || empty.Len() != 0 {
		t.Fatal("FromProto(nil) should be empty and owned")
	}
}

func TestVisitShapes(t *testing.T) {
	b := []byte("bytes")
	if v := visit(inputBytes, "", b); !v.IsOwned() || &v.Bytes()[0] == &b[0] {
		t.Fatal("borrowed decoder bytes should be copied")
	}
	if v := visit(inputByteBuf, "", b); !v.IsOwned() || &v.Bytes()[0] != &b[0] {
		t.Fatal("handed-over buffers should be adopted")
	}
	if v := visit(inputStr, "str", nil); !v.IsOwned() || v.String() != "str" {
		t.Fatal("borrowed text should be copied into an owned value")
	}
	if v := visit(inputString, "string", nil); !v.IsOwned() || v.String() != "string" {
		t.Fatal("handed-over text should be adopted")
	}
	if v := visit(inputString, "", nil); !v.IsOwned() || v.Len() != 0 {
		t.Fatal("empty text should yield an empty owned value")
	}
}
