package mocks

import (
	"sync"

	"github.com/ludoduel/ludo-server/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Each method pops from its own queue and falls back to a fixed value when empty.
type MockRandom struct {
	mu sync.Mutex

	intnResults   []int
	diceResults   []int
	stringResults []string
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intnResults) == 0 {
		return 0
	}
	result := r.intnResults[0]
	r.intnResults = r.intnResults[1:]
	return result
}

// Die returns the next queued roll, or 1 if none remaining
func (r *MockRandom) Die() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.diceResults) == 0 {
		return 1
	}
	result := r.diceResults[0]
	r.diceResults = r.diceResults[1:]
	return result
}

// String returns the next queued result, or empty string if none remaining
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stringResults) == 0 {
		return ""
	}
	result := r.stringResults[0]
	r.stringResults = r.stringResults[1:]
	return result
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = append(r.intnResults, values...)
}

// QueueDice adds rolls to the Die result queue
func (r *MockRandom) QueueDice(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diceResults = append(r.diceResults, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stringResults = append(r.stringResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = nil
	r.diceResults = nil
	r.stringResults = nil
}
