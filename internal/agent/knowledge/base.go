package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/metrics"
	logx "github.com/chative/botcore/pkg/logger"
)

const (
	DefaultMinRelevance  = 0.6
	DefaultMaxResults    = 5
	DefaultSourceTimeout = 3 * time.Second

	relatedTitles = 3
)

// defaultTriggerActions maps content types that always need follow-up to
// the action that handles them.
var defaultTriggerActions = map[string]string{
	ContentForm:    "fill_form",
	ContentBooking: "create_booking",
	ContentPayment: "process_payment",
}

type Options struct {
	MinRelevance  float64
	MaxResults    int
	CacheTTL      time.Duration
	CacheSize     int
	SourceTimeout time.Duration
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// OptionsFromConfig maps the environment config onto Options.
func OptionsFromConfig(cfg model.KnowledgeConfig) Options {
	return Options{
		MinRelevance:  cfg.MinRelevanceScore,
		MaxResults:    cfg.MaxResults,
		CacheTTL:      cfg.CacheTTL,
		CacheSize:     cfg.CacheSize,
		SourceTimeout: cfg.SourceTimeout,
	}
}

// Base is one bot's knowledge base: an ordered set of sources with a
// shared result cache.
type Base struct {
	mu      sync.RWMutex
	sources []Source

	cache         *resultCache
	flight        singleflight.Group
	minRelevance  float64
	maxResults    int
	sourceTimeout time.Duration
	metrics       *metrics.Metrics
	now           func() time.Time
	log           zerolog.Logger
}

func NewBase(opts Options, sources ...Source) *Base {
	b := &Base{
		cache:         newResultCache(opts.CacheTTL, opts.CacheSize),
		minRelevance:  opts.MinRelevance,
		maxResults:    opts.MaxResults,
		sourceTimeout: opts.SourceTimeout,
		metrics:       opts.Metrics,
		now:           opts.Now,
		log:           logx.With("knowledge"),
	}
	if b.minRelevance <= 0 {
		b.minRelevance = DefaultMinRelevance
	}
	if b.maxResults <= 0 {
		b.maxResults = DefaultMaxResults
	}
	if b.sourceTimeout <= 0 {
		b.sourceTimeout = DefaultSourceTimeout
	}
	if b.now == nil {
		b.now = time.Now
	}
	for _, s := range sources {
		b.AddSource(s)
	}
	return b
}

// AddSource appends src, replacing any source with the same id in place.
// The cache is cleared.
func (b *Base) AddSource(src Source) {
	b.mu.Lock()
	replaced := false
	for i, s := range b.sources {
		if s.ID() == src.ID() {
			b.sources[i] = src
			replaced = true
			break
		}
	}
	if !replaced {
		b.sources = append(b.sources, src)
	}
	b.mu.Unlock()
	b.cache.clear()
}

// RemoveSource drops the source with id and clears the cache.
func (b *Base) RemoveSource(id string) bool {
	b.mu.Lock()
	removed := false
	for i, s := range b.sources {
		if s.ID() == id {
			b.sources = append(b.sources[:i], b.sources[i+1:]...)
			removed = true
			break
		}
	}
	b.mu.Unlock()
	b.cache.clear()
	return removed
}

func (b *Base) Sources() []Source {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Source(nil), b.sources...)
}

// CachedResults returns the number of live cache entries.
func (b *Base) CachedResults() int {
	return b.cache.len()
}

// Query never fails: any internal failure yields a not-found result with
// Error set.
func (b *Base) Query(ctx context.Context, q Query) (res Result) {
	sq := buildQuery(q)
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("intent", sq.Intent).Msg("knowledge query panicked")
			res = Result{Query: sq, Sources: []Item{}, Error: fmt.Sprint(r)}
		}
	}()

	key := cacheKey(sq.Intent, q.Understanding.Text)
	if cached, ok := b.cache.get(key, b.now()); ok {
		b.metrics.RecordKnowledgeQuery(true, cached.Found)
		return cached
	}

	gen := b.cache.generation()
	v, _, _ := b.flight.Do(key, func() (any, error) {
		r := b.search(ctx, sq)
		if r.Error == "" {
			b.cache.put(key, r, b.now(), gen)
		}
		return r, nil
	})
	res = v.(Result)
	b.metrics.RecordKnowledgeQuery(false, res.Found)
	return res
}

func buildQuery(q Query) StructuredQuery {
	sq := StructuredQuery{
		Text:     q.Understanding.Text,
		Intent:   q.Understanding.Intent.Name,
		Entities: q.Understanding.EntityMap(),
		Filters:  map[string]any{},
		UserID:   q.UserID,
	}
	if q.Context == nil {
		return sq
	}
	if prefs, ok := q.Context.Variables["preferences"].(map[string]any); ok {
		for k, v := range prefs {
			sq.Filters[k] = v
		}
	}
	if prev, ok := q.Context.PreviousIntent(); ok {
		sq.PreviousIntent = prev.Intent
	}
	return sq
}

func (b *Base) search(ctx context.Context, sq StructuredQuery) Result {
	sources := b.Sources()
	found := make([][]Item, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, b.sourceTimeout)
			defer cancel()
			items, err := safeSearch(sctx, src, sq)
			if err != nil {
				b.log.Warn().Err(err).Str("source_id", src.ID()).Str("source_type", src.Type()).Msg("knowledge source failed")
				return nil
			}
			found[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var pooled []Item
	for _, items := range found {
		pooled = append(pooled, items...)
	}
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].Relevance > pooled[j].Relevance })

	top := make([]Item, 0, b.maxResults)
	for _, it := range pooled {
		if it.Relevance < b.minRelevance {
			break
		}
		top = append(top, it)
		if len(top) == b.maxResults {
			break
		}
	}

	res := Result{Query: sq, Sources: top}
	if len(top) == 0 {
		return res
	}
	res.Found = true
	res.Confidence = top[0].Relevance
	res.Information = extractInformation(top)
	res.RequiresAction = requiresAction(res.Information)
	if res.RequiresAction {
		res.SuggestedActions = suggestActions(res.Information)
	}
	return res
}

func safeSearch(ctx context.Context, src Source, sq StructuredQuery) (items []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.ID(), r)
		}
	}()
	return src.Search(ctx, sq)
}

func extractInformation(top []Item) *Information {
	best := top[0]
	info := &Information{
		Content:  best.Content,
		Title:    best.Title,
		Type:     best.Type,
		SourceID: best.Source,
		ItemID:   best.ID,
		Triggers: best.Actions,
		Metadata: best.Metadata,
	}
	for _, it := range top[1:] {
		if len(info.Related) == relatedTitles {
			break
		}
		if it.Title != "" {
			info.Related = append(info.Related, it.Title)
		}
	}
	return info
}

func requiresAction(info *Information) bool {
	if info == nil {
		return false
	}
	if len(info.Triggers) > 0 {
		return true
	}
	_, ok := defaultTriggerActions[info.Type]
	return ok
}

func suggestActions(info *Information) []model.ActionRequest {
	params := func() map[string]any {
		return map[string]any{"source": info.SourceID, "item": info.ItemID}
	}
	seen := map[string]bool{}
	var out []model.ActionRequest
	for _, t := range info.Triggers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, model.ActionRequest{Type: t, Params: params()})
	}
	if def, ok := defaultTriggerActions[info.Type]; ok && !seen[def] {
		out = append(out, model.ActionRequest{Type: def, Params: params()})
	}
	return out
}
