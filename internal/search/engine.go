package search

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
)

// DefaultQuietPeriod is how long input must settle before a recomputation.
const DefaultQuietPeriod = 300 * time.Millisecond

// Source provides the snapshot searched by the engine.
type Source interface {
	Get() *inventory.Snapshot
}

// Result is a computed search.
type Result struct {
	Query      Query              `json:"query"`
	Items      []models.StockItem `json:"items"`
	Rows       []Row              `json:"rows"`
	Count      int                `json:"count"`
	ComputedAt time.Time          `json:"computed_at"`
}

// Engine debounces query changes and recomputes only the latest one.
type Engine struct {
	source    Source
	quiet     time.Duration
	threshold int
	onResult  func(Result)
	logger    *zap.Logger

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	latest  *Result
	runs    int
	stopped bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithQuietPeriod overrides DefaultQuietPeriod.
func WithQuietPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.quiet = d
		}
	}
}

// WithLowStockThreshold sets the low-stock bound for queries that carry none.
func WithLowStockThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// WithResultHandler registers a callback invoked with every published result.
func WithResultHandler(fn func(Result)) Option {
	return func(e *Engine) { e.onResult = fn }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds a debounced search engine over source.
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		quiet:     DefaultQuietPeriod,
		threshold: inventory.DefaultLowStockThreshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit schedules q. A pending query that has not run yet is dropped.
func (e *Engine) Submit(q Query) {
	q = e.bound(q)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.quiet, func() { e.run(gen, q) })
}

// Run computes q immediately and publishes it, superseding anything pending.
func (e *Engine) Run(q Query) Result {
	q = e.bound(q)
	e.mu.Lock()
	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()

	res, _ := e.compute(gen, q)
	return res
}

// Latest returns the last published result.
func (e *Engine) Latest() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return Result{}, false
	}
	return *e.latest, true
}

// Recomputations counts how many queries were actually evaluated.
func (e *Engine) Recomputations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}

// Stop cancels any pending query and ignores later submissions.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.timer != nil {
		e.timer.Stop()
	}
}

func (e *Engine) bound(q Query) Query {
	if q.Threshold <= 0 {
		q.Threshold = e.threshold
	}
	return q
}

func (e *Engine) run(gen uint64, q Query) {
	e.mu.Lock()
	current := gen == e.gen && !e.stopped
	e.mu.Unlock()
	if !current {
		return
	}
	e.compute(gen, q)
}

func (e *Engine) compute(gen uint64, q Query) (Result, bool) {
	e.mu.Lock()
	e.runs++
	e.mu.Unlock()

	items := Filter(e.source.Get().Stock, q)
	res := Result{
		Query:      q,
		Items:      items,
		Rows:       HighlightRows(items, q.Text),
		Count:      len(items),
		ComputedAt: time.Now(),
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.logger.Debug("search superseded while computing", zap.String("q", q.Text))
		return res, false
	}
	e.latest = &res
	handler := e.onResult
	e.mu.Unlock()

	if handler != nil {
		handler(res)
	}
	return res, true
}
