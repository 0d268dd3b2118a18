// Package memory keeps long-term, per-user facts ordered by importance.
package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chative/botcore/internal/agent/model"
)

const DefaultMaxPerUser = 200

var ErrMemoryNotFound = errors.New("memory not found")

// Input describes a memory to store. Zero Importance means the default.
type Input struct {
	Type       string
	Content    string
	Importance int
	Metadata   map[string]any
}

// Filter narrows Retrieve. Zero values disable the corresponding filter.
type Filter struct {
	Type          string
	MinImportance int
	Limit         int
}

// Patch changes an existing memory. Nil fields are left untouched.
type Patch struct {
	Type       *string
	Content    *string
	Importance *int
	Metadata   map[string]any
}

// Store is the memory system contract. Retrieve returns memories sorted by
// importance, highest first, and marks every returned memory as accessed.
type Store interface {
	Add(ctx context.Context, userID string, in Input) (*model.Memory, error)
	Retrieve(ctx context.Context, userID string, f Filter) ([]model.Memory, error)
	Update(ctx context.Context, userID, id string, p Patch) (*model.Memory, error)
	Delete(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) error
}

// IDGenerator produces lexicographically time-ordered ids.
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)}
}

func (g *IDGenerator) New(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), g.entropy).String()
}

// Matches reports whether m passes f's type and importance filters.
func (f Filter) Matches(m model.Memory) bool {
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.MinImportance > 0 && m.Importance < f.MinImportance {
		return false
	}
	return true
}
