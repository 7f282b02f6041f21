package mocks

import (
	"fmt"
	"sync"

	"github.com/ludoduel/ludo-server/internal/dependencies/ids"
)

// MockIDs is a mock implementation of ids.Generator for testing.
// Queued IDs are returned first, then "<prefix>-<n>" sequentially.
type MockIDs struct {
	mu     sync.Mutex
	queued []string
	prefix string
	next   int
}

// Ensure MockIDs implements Generator
var _ ids.Generator = (*MockIDs)(nil)

// NewMockIDs creates a MockIDs producing "<prefix>-1", "<prefix>-2", ...
func NewMockIDs(prefix string) *MockIDs {
	return &MockIDs{prefix: prefix}
}

// NewID returns the next queued or sequential ID
func (g *MockIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queued) > 0 {
		id := g.queued[0]
		g.queued = g.queued[1:]
		return id
	}
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}

// Queue adds IDs to be returned before the sequence
func (g *MockIDs) Queue(values ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queued = append(g.queued, values...)
}
