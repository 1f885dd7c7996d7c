package testfixtures

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator hands out "<prefix>-1", "<prefix>-2", ... so audit record ids
// are predictable in assertions.
type IDGenerator struct {
	prefix string
	last   atomic.Uint64
}

// NewIDGenerator returns a sequence with the given prefix ("id" when empty).
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	return g.prefix + "-" + strconv.FormatUint(g.last.Add(1), 10)
}

// NextFunc returns g.Next, or nil for a nil generator so callers fall back to
// their default id source.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return nil
	}
	return g.Next
}
