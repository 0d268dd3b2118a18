package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chative/botcore/internal/agent/model"
	errx "github.com/chative/botcore/internal/core/error"
	"github.com/chative/botcore/internal/metrics"
	logx "github.com/chative/botcore/pkg/logger"
)

const (
	DefaultMaxConcurrent = 5
	DefaultTimeout       = 10 * time.Second
)

// SystemActions are available to every bot and cannot be removed.
var SystemActions = []string{
	ActionSearchKnowledgeBase,
	ActionGetCurrentTime,
	ActionGetUserProfile,
	ActionSaveConversationNote,
	ActionSetReminder,
}

func IsSystemAction(name string) bool {
	for _, s := range SystemActions {
		if s == name {
			return true
		}
	}
	return false
}

// Framework executes actions for one bot, gated by its allow-list.
type Framework struct {
	botID    string
	registry *Registry

	mu        sync.RWMutex
	available map[string]struct{}

	maxConcurrent int
	timeout       time.Duration
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

func NewFramework(botID string, registry *Registry, cfg model.ActionConfig, available []string, m *metrics.Metrics) *Framework {
	f := &Framework{
		botID:         botID,
		registry:      registry,
		available:     make(map[string]struct{}),
		maxConcurrent: cfg.MaxConcurrentActions,
		timeout:       cfg.Timeout,
		metrics:       m,
		log:           logx.With("actions").With().Str("bot_id", botID).Logger(),
	}
	if f.maxConcurrent <= 0 {
		f.maxConcurrent = DefaultMaxConcurrent
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	for _, name := range SystemActions {
		f.available[name] = struct{}{}
	}
	for _, name := range available {
		f.available[name] = struct{}{}
	}
	return f
}

func (f *Framework) Registry() *Registry { return f.registry }

// AvailableActions returns the allow-list sorted by name.
func (f *Framework) AvailableActions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.available))
	for n := range f.available {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (f *Framework) IsAvailable(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.available[name]
	return ok
}

func (f *Framework) AddAvailableAction(name string) error {
	if name == "" {
		return errx.Validation(nil, "action name is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available[name] = struct{}{}
	return nil
}

func (f *Framework) RemoveAvailableAction(name string) error {
	if IsSystemAction(name) {
		return errx.Permission(ErrSystemAction, "cannot remove system action "+name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.available, name)
	return nil
}

// ExecuteActions runs the allowed requests concurrently, at most
// maxConcurrent of them; the rest are dropped. Results keep request order.
// A failing, panicking or timed-out action only fails its own slot.
func (f *Framework) ExecuteActions(ctx context.Context, reqs []model.ActionRequest, ec ExecutionContext) []model.ActionResult {
	batch := make([]model.ActionRequest, 0, len(reqs))
	for _, r := range reqs {
		if f.IsAvailable(r.Type) {
			batch = append(batch, r)
		} else {
			f.log.Debug().Str("action", r.Type).Msg("action not in allow-list; skipped")
		}
	}
	if len(batch) == 0 {
		if len(reqs) > 0 {
			f.log.Warn().Int("requested", len(reqs)).Msg("no requested action is available for this bot")
			f.metrics.RecordDropped("not_allowed", len(reqs))
		}
		return []model.ActionResult{}
	}
	if dropped := len(reqs) - len(batch); dropped > 0 {
		f.metrics.RecordDropped("not_allowed", dropped)
	}
	if len(batch) > f.maxConcurrent {
		f.log.Debug().Int("dropped", len(batch)-f.maxConcurrent).Msg("action batch over capacity")
		f.metrics.RecordDropped("capacity", len(batch)-f.maxConcurrent)
		batch = batch[:f.maxConcurrent]
	}
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.NewString()
		}
	}

	results := make([]model.ActionResult, len(batch))
	var g errgroup.Group
	for i, req := range batch {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("action %s: %v", req.Type, r)
				}
			}()
			results[i] = f.execute(ctx, req, ec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.log.Error().Err(err).Msg("action batch failed")
		for i, req := range batch {
			results[i] = failure(req, "action execution failed: "+err.Error())
		}
	}
	return results
}

type outcome struct {
	value any
	err   error
}

func (f *Framework) execute(ctx context.Context, req model.ActionRequest, ec ExecutionContext) model.ActionResult {
	start := time.Now()
	res := f.run(ctx, req, ec)
	res.Duration = time.Since(start)

	if def, ok := f.registry.Get(req.Type); ok {
		if v := ValidateResult(def, res); !v.Valid {
			f.log.Warn().Str("action", req.Type).Strs("errors", v.Errors).Msg("action result failed validation")
		}
	}
	f.metrics.RecordAction(req.Type, res.Success, res.Duration)
	if !res.Success {
		f.log.Warn().Str("action", req.Type).Str("error", res.Error).Msg("action failed")
	}
	return res
}

func (f *Framework) run(ctx context.Context, req model.ActionRequest, ec ExecutionContext) model.ActionResult {
	def, ok := f.registry.Get(req.Type)
	if !ok {
		return failure(req, "action "+req.Type+" is not registered")
	}
	if v := ValidateRequest(def, req, ec); !v.Valid {
		return failure(req, strings.Join(v.Errors, "; "))
	}

	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("action panicked: %v", r)}
			}
		}()
		v, err := def.Handler(actx, req.Params, ec)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return failure(req, o.err.Error())
		}
		return model.ActionResult{ID: req.ID, Type: req.Type, Success: true, Result: o.value}
	case <-actx.Done():
		if ctx.Err() != nil {
			return failure(req, "action cancelled: "+ctx.Err().Error())
		}
		return failure(req, fmt.Sprintf("action %s timed out after %s", req.Type, f.timeout))
	}
}
