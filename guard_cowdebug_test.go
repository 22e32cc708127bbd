//go:build cowdebug

package cowbytes

import "testing"

func TestGuardDetectsMutatedSource(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	v := Borrow(src)
	if got := v.Len(); got != 4 {
		t.Fatalf("Len = %d, want 4", got)
	}

	src[0] = 9
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading a mutated borrow")
		}
	}()
	_ = v.Bytes()
}

func TestGuardIgnoresOwned(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	v := Own(src)
	src[0] = 9
	if v.Bytes()[0] != 9 {
		t.Fatal("owned value should alias the transferred allocation")
	}
}

func TestGuardZeroValue(t *testing.T) {
	var v CowBytes
	if len(v.Bytes()) != 0 {
		t.Fatal("zero value should be empty")
	}
}
