//go:build cowdebug

package cowbytes

import (
	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"
)

// borrowGuard fingerprints borrowed memory at construction so that a source
// buffer mutated or reused behind the container's back is caught on the next
// read instead of silently returning different bytes.
type borrowGuard struct {
	sum uint64
}

func guardBorrow(b []byte) borrowGuard {
	return borrowGuard{sum: murmur3.Sum64(b)}
}

func (g borrowGuard) check(b []byte) {
	if murmur3.Sum64(b) != g.sum {
		logrus.Panicf("cowbytes: borrowed memory (%d bytes) changed under a live view", len(b))
	}
}
