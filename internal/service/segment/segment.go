// Package segment generates transcript entry identifiers.
package segment

import (
	"fmt"
	"strings"
	"sync/atomic"
)

const marker = "-seg-"

// Generator hands out entry IDs of the form "<sessionId>-seg-<n>".
// The counter is monotonic per generator and safe for concurrent use.
type Generator struct {
	counter atomic.Uint64
}

func New() *Generator {
	return &Generator{}
}

// Next returns the next ID scoped to sessionId.
func (g *Generator) Next(sessionId string) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s%s%d", sessionId, marker, n)
}

// Issued returns how many IDs have been handed out.
func (g *Generator) Issued() uint64 {
	return g.counter.Load()
}

// SessionOf returns the session part of an ID produced by Next, or "" if id
// was not produced by a Generator.
func SessionOf(id string) string {
	i := strings.LastIndex(id, marker)
	if i <= 0 {
		return ""
	}
	return id[:i]
}
