// Package actions registers, validates and executes side-effecting bot
// actions.
package actions

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/model"
	errx "github.com/chative/botcore/internal/core/error"
)

var (
	ErrDuplicateAction = errors.New("action already registered")
	ErrActionNotFound  = errors.New("action not registered")
	ErrSystemAction    = errors.New("system actions cannot be removed")
)

// Permission is an ordinal caller level.
type Permission int

const (
	PermissionPublic Permission = iota
	PermissionUser
	PermissionPremium
	PermissionManager
	PermissionAdmin
)

var permissionNames = []string{"public", "user", "premium", "manager", "admin"}

func (p Permission) String() string {
	if p < PermissionPublic || int(p) >= len(permissionNames) {
		return "unknown"
	}
	return permissionNames[p]
}

// ParsePermission maps a level name onto Permission; unknown names are public.
func ParsePermission(s string) Permission {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range permissionNames {
		if name == s {
			return Permission(i)
		}
	}
	return PermissionPublic
}

// Searcher is the slice of the knowledge base that actions may use.
type Searcher interface {
	Query(ctx context.Context, q knowledge.Query) knowledge.Result
}

// ExecutionContext is what a handler knows about the caller.
type ExecutionContext struct {
	BotID      string
	UserID     string
	SessionID  string
	Permission Permission
	Knowledge  Searcher
	Memory     memory.Store
	Metadata   map[string]any
	Now        func() time.Time
}

func (ec ExecutionContext) now() time.Time {
	if ec.Now != nil {
		return ec.Now()
	}
	return time.Now()
}

type Handler func(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error)

type Definition struct {
	Name           string
	Description    string
	Handler        Handler
	RequiredParams []string
	Category       string
	Permission     Permission
	ReturnsData    bool
	Enabled        bool
	Registered     time.Time
}

// Registry is the process-wide action catalogue shared by every bot.
type Registry struct {
	mu         sync.RWMutex
	actions    map[string]*Definition
	byCategory map[string]map[string]struct{}
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string]*Definition),
		byCategory: make(map[string]map[string]struct{}),
		now:        time.Now,
	}
}

// Register adds def as enabled. Registering an existing name fails; use
// Update instead.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errx.Validation(nil, "action name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[def.Name]; ok {
		return errx.Conflict(ErrDuplicateAction, "action "+def.Name+" already registered")
	}
	def.Enabled = true
	def.Registered = r.now()
	r.actions[def.Name] = &def
	r.index(def.Name, def.Category)
	return nil
}

// Update replaces the definition of an existing action, keeping its
// registration time and enabled flag.
func (r *Registry) Update(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.actions[def.Name]
	if !ok {
		return errx.NotFound(ErrActionNotFound, "action "+def.Name+" not registered")
	}
	r.unindex(cur.Name, cur.Category)
	def.Enabled = cur.Enabled
	def.Registered = cur.Registered
	r.actions[def.Name] = &def
	r.index(def.Name, def.Category)
	return nil
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.actions[name]
	if !ok {
		return false
	}
	r.unindex(name, cur.Category)
	delete(r.actions, name)
	return true
}

func (r *Registry) Enable(name string) error  { return r.setEnabled(name, true) }
func (r *Registry) Disable(name string) error { return r.setEnabled(name, false) }

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.actions[name]
	if !ok {
		return errx.NotFound(ErrActionNotFound, "action "+name+" not registered")
	}
	cur.Enabled = enabled
	return nil
}

// Get returns a copy of the definition.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.actions[name]
	if !ok {
		return Definition{}, false
	}
	return *cur, true
}

// ByCategory returns the actions of category sorted by name.
func (r *Registry) ByCategory(category string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byCategory[category]))
	for n := range r.byCategory[category] {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Definition, 0, len(names))
	for _, n := range names {
		out = append(out, *r.actions[n])
	}
	return out
}

func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byCategory))
	for c := range r.byCategory {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for n := range r.actions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) index(name, category string) {
	if category == "" {
		return
	}
	set, ok := r.byCategory[category]
	if !ok {
		set = make(map[string]struct{})
		r.byCategory[category] = set
	}
	set[name] = struct{}{}
}

func (r *Registry) unindex(name, category string) {
	set, ok := r.byCategory[category]
	if !ok {
		return
	}
	delete(set, name)
	if len(set) == 0 {
		delete(r.byCategory, category)
	}
}

// failure builds the uniform failed result for a request.
func failure(req model.ActionRequest, msg string) model.ActionResult {
	return model.ActionResult{ID: req.ID, Type: req.Type, Success: false, Error: msg}
}
