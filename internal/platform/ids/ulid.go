// Package ids generates ULIDs for vote receipts. Vote ids sort by creation
// time, which keeps the ledger's primary key index append-friendly.
package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonic ULIDs. Monotonic entropy guarantees strict
// ordering for ids minted within the same millisecond, so two votes from
// one burst never collide or interleave.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewGenerator() *Generator {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Generator{entropy: ulid.Monotonic(src, 0)}
}

func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
)

// DefaultGenerator is the process-wide generator for callers that do not
// inject their own.
func DefaultGenerator() *Generator {
	defaultOnce.Do(func() {
		defaultGen = NewGenerator()
	})
	return defaultGen
}
