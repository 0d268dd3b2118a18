package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chative/botcore/internal/agent/model"
	errx "github.com/chative/botcore/internal/core/error"
)

// InMemoryStore keeps memories in process, capped per user. Equal importance
// orders newest first, so over capacity the least important, oldest memory
// goes.
type InMemoryStore struct {
	mu         sync.Mutex
	byUser     map[string][]*model.Memory
	maxPerUser int
	ids        *IDGenerator
	now        func() time.Time
}

func NewInMemoryStore(maxPerUser int) *InMemoryStore {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return &InMemoryStore{
		byUser:     make(map[string][]*model.Memory),
		maxPerUser: maxPerUser,
		ids:        NewIDGenerator(),
		now:        time.Now,
	}
}

// SetClock overrides the time source; intended for tests.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) Add(ctx context.Context, userID string, in Input) (*model.Memory, error) {
	if userID == "" {
		return nil, errx.Validation(nil, "user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	m := &model.Memory{
		ID:           s.ids.New(now),
		UserID:       userID,
		Type:         in.Type,
		Content:      in.Content,
		Importance:   model.ClampImportance(in.Importance),
		Metadata:     in.Metadata,
		CreatedAt:    now,
		LastAccessed: now,
	}
	list := append(s.byUser[userID], m)
	sortByImportance(list)
	if len(list) > s.maxPerUser {
		list = list[:s.maxPerUser]
	}
	s.byUser[userID] = list

	cp := *m
	return &cp, nil
}

func (s *InMemoryStore) Retrieve(ctx context.Context, userID string, f Filter) ([]model.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := []model.Memory{}
	for _, m := range s.byUser[userID] {
		if !f.Matches(*m) {
			continue
		}
		m.LastAccessed = now
		out = append(out, *m)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, userID, id string, p Patch) (*model.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	for _, m := range list {
		if m.ID != id {
			continue
		}
		if p.Type != nil {
			m.Type = *p.Type
		}
		if p.Content != nil {
			m.Content = *p.Content
		}
		if p.Importance != nil {
			m.Importance = model.ClampImportance(*p.Importance)
		}
		if p.Metadata != nil {
			m.Metadata = p.Metadata
		}
		now := s.now()
		m.LastModified = &now
		sortByImportance(list)
		cp := *m
		return &cp, nil
	}
	return nil, errx.NotFound(ErrMemoryNotFound, "memory not found")
}

func (s *InMemoryStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	for i, m := range list {
		if m.ID == id {
			s.byUser[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return errx.NotFound(ErrMemoryNotFound, "memory not found")
}

func (s *InMemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
	return nil
}

func sortByImportance(list []*model.Memory) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Importance != list[j].Importance {
			return list[i].Importance > list[j].Importance
		}
		return list[i].ID > list[j].ID
	})
}

var _ Store = (*InMemoryStore)(nil)
