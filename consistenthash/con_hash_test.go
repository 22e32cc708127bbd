package consistenthash

import (
	"strconv"
	"testing"
)

func TestAddGetRemove(t *testing.T) {
	m := New()

	if err := m.Add("node1", "node2"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(m.keys) != m.config.Replicas*2 {
		t.Fatalf("unexpected virtual node count: %d", len(m.keys))
	}

	if node := m.Get("key1"); node == "" {
		t.Fatal("Get returned empty node")
	}

	if err := m.Remove("node1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if node := m.Get("key1"); node != "node2" {
		t.Fatalf("expected node2 after remove, got %s", node)
	}
	if len(m.keys) != m.config.Replicas {
		t.Fatalf("virtual nodes left after remove: %d", len(m.keys))
	}
}

func TestRemoveMissingNode(t *testing.T) {
	m := New()
	if err := m.Remove("missing"); err == nil {
		t.Fatal("expected error removing missing node")
	}
}

func TestGetWrapsAround(t *testing.T) {
	m := New(WithConfig(Config{
		HashFunc: func(key []byte) uint32 {
			i, _ := strconv.Atoi(string(key))
			return uint32(i)
		},
	}))
	m.hashMap = map[uint32]string{2: "A", 4: "B", 6: "C"}
	m.keys = []uint32{2, 4, 6}

	cases := map[string]string{"2": "A", "3": "B", "5": "C", "7": "A"}
	for key, want := range cases {
		if got := m.Get(key); got != want {
			t.Errorf("Get(%s) = %s, want %s", key, got, want)
		}
	}
}

func TestAddIsIdempotent(t *testing.T) {
	m := New()
	m.Add("a")
	m.Add("a", "")
	if len(m.keys) != m.config.Replicas {
		t.Fatalf("duplicate add grew the ring to %d", len(m.keys))
	}
	if nodes := m.Nodes(); len(nodes) != 1 || nodes[0] != "a" {
		t.Fatalf("Nodes = %v", nodes)
	}
}
