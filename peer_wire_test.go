package cowbytes

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestPeerRequestRoundTrip(t *testing.T) {
	in := peerRequest{group: "g", key: "k", value: Borrow([]byte("payload"))}
	out, err := parsePeerRequest(in.marshal())
	if err != nil {
		t.Fatalf("parsePeerRequest failed: %v", err)
	}
	if out.group != "g" || out.key != "k" || out.value.String() != "payload" {
		t.Fatalf("decoded %+v", out)
	}
	if !out.value.IsOwned() {
		t.Fatal("decoded value should be Owned")
	}
}

func TestPeerRequestSkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "key")
	b = protowire.AppendTag(b, 10, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("ignored"))

	out, err := parsePeerRequest(wrapperspb.Bytes(b))
	if err != nil {
		t.Fatalf("parsePeerRequest failed: %v", err)
	}
	if out.key != "key" || out.group != "" || out.value.Len() != 0 {
		t.Fatalf("decoded %+v", out)
	}
}

func TestPeerRequestTruncated(t *testing.T) {
	full := peerRequest{group: "group", key: "key", value: Copy([]byte("value"))}.marshal().GetValue()

	// Cuts that land between fields still form a valid message.
	boundaries := map[int]bool{}
	for off := 0; off < len(full); {
		_, _, m := protowire.ConsumeField(full[off:])
		if m < 0 {
			t.Fatalf("marshaled request is malformed at %d", off)
		}
		off += m
		boundaries[off] = true
	}

	for n := 1; n < len(full); n++ {
		_, err := parsePeerRequest(wrapperspb.Bytes(full[:n]))
		if boundaries[n] && err != nil {
			t.Fatalf("cut at field boundary %d: %v", n, err)
		}
		if !boundaries[n] && err == nil {
			t.Fatalf("truncated to %d bytes: expected error", n)
		}
	}
}

func TestParsePeerRequestNil(t *testing.T) {
	out, err := parsePeerRequest(nil)
	if err != nil {
		t.Fatalf("parsePeerRequest(nil) failed: %v", err)
	}
	if out.group != "" || out.key != "" {
		t.Fatalf("decoded %+v", out)
	}
}
