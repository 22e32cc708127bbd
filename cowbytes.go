// Package cowbytes provides CowBytes, an immutable byte sequence that either
// borrows memory owned by the caller or owns a private allocation, plus the
// cache, transport and discovery layers that pass such values around without
// copying them more than they have to.
package cowbytes

import (
	"bytes"
)

// Mode reports which variant a CowBytes holds.
type Mode uint8

const (
	Borrowed Mode = iota // view into memory owned by someone else
	Owned                // private allocation
)

func (m Mode) String() string {
	switch m {
	case Borrowed:
		return "borrowed"
	case Owned:
		return "owned"
	default:
		return "unknown"
	}
}

// CowBytes holds an immutable view of bytes.
//
// A Borrowed CowBytes does not own b: whoever constructed it guarantees the
// backing memory stays valid and unmodified for as long as the CowBytes (or
// anything derived from Bytes) is in use. Build with -tags cowdebug to have
// violations of that contract detected at read time.
//
// The zero value is an Owned empty sequence, which is also what decoders that
// short-circuit nil leave behind. CowBytes is meant to be used as a value
// type, like ByteView in groupcache.
type CowBytes struct {
	b        []byte
	borrowed bool
	guard    borrowGuard
}

// Borrow wraps b without copying it.
func Borrow(b []byte) CowBytes {
	return CowBytes{b: b, borrowed: true, guard: guardBorrow(b)}
}

// BorrowBuffer wraps the unread portion of buf without copying it. The view
// is invalidated by the next write, read or reset on buf.
func BorrowBuffer(buf *bytes.Buffer) CowBytes {
	if buf == nil {
		return Borrow(nil)
	}
	return Borrow(buf.Bytes())
}

// Own takes ownership of b. The caller must not use b afterwards.
func Own(b []byte) CowBytes {
	if b == nil {
		b = []byte{}
	}
	return CowBytes{b: b}
}

// Copy returns an Owned CowBytes holding a private copy of b.
func Copy(b []byte) CowBytes {
	return Own(cloneBytes(b))
}

// FromCow converts a maybe-owned byte slice, keeping its mode. When owned is
// true the allocation moves into the result.
func FromCow(b []byte, owned bool) CowBytes {
	if owned {
		return Own(b)
	}
	return Borrow(b)
}

// IntoCow is the inverse of FromCow. An owned allocation moves out; c must
// not be used afterwards.
func (c CowBytes) IntoCow() (b []byte, owned bool) {
	return c.Bytes(), !c.borrowed
}

// ToOwned returns c itself when it is Owned and a private copy otherwise.
func (c CowBytes) ToOwned() CowBytes {
	if !c.borrowed {
		return c
	}
	return Copy(c.Bytes())
}

func (c CowBytes) IsBorrowed() bool {
	return c.borrowed
}

func (c CowBytes) IsOwned() bool {
	return !c.borrowed
}

func (c CowBytes) Mode() Mode {
	if c.borrowed {
		return Borrowed
	}
	return Owned
}

// Bytes returns the contained bytes without copying. The slice must not be
// modified.
func (c CowBytes) Bytes() []byte {
	if c.borrowed {
		c.guard.check(c.b)
	}
	return c.b
}

// Len returns the view's length.
func (c CowBytes) Len() int {
	return len(c.b)
}

// ByteSlice returns a copy of the data.
func (c CowBytes) ByteSlice() []byte {
	return cloneBytes(c.Bytes())
}

// String returns the data as a string, making a copy if necessary.
func (c CowBytes) String() string {
	return string(c.Bytes())
}

// Equal reports whether c and other hold the same bytes. The mode of either
// side does not matter.
func (c CowBytes) Equal(other CowBytes) bool {
	return bytes.Equal(c.Bytes(), other.Bytes())
}

// EqualBytes reports whether c holds exactly b.
func (c CowBytes) EqualBytes(b []byte) bool {
	return bytes.Equal(c.Bytes(), b)
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
