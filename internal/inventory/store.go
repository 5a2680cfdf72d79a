// Package inventory caches the backend's stock and sales lists as an
// immutable snapshot that is replaced wholesale on every refresh.
package inventory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

// Fetcher is the slice of the backend client the store reads from.
type Fetcher interface {
	ListStock(ctx context.Context, opts stockapi.FetchOptions) ([]models.StockItem, error)
	ListSales(ctx context.Context, opts stockapi.FetchOptions) ([]models.SaleRecord, error)
}

// Snapshot is one consistent view of the backend. It must not be mutated.
type Snapshot struct {
	Stock     []models.StockItem
	Sales     []models.SaleRecord
	FetchedAt time.Time
	Seq       uint64
}

// Item looks up a stock item by id.
func (s *Snapshot) Item(id int64) (models.StockItem, bool) {
	for _, item := range s.Stock {
		if item.ID == id {
			return item, true
		}
	}
	return models.StockItem{}, false
}

// ItemByKey looks up a stock item by product and company.
func (s *Snapshot) ItemByKey(key models.ProductKey) (models.StockItem, bool) {
	for _, item := range s.Stock {
		if item.Key() == key {
			return item, true
		}
	}
	return models.StockItem{}, false
}

// Store holds the latest snapshot.
type Store struct {
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time

	current     atomic.Pointer[Snapshot]
	seq         atomic.Uint64
	invalidated atomic.Bool

	mu      sync.Mutex
	applied uint64
}

// NewStore builds an empty store. Get returns an empty snapshot until the
// first successful Refresh.
func NewStore(fetcher Fetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{fetcher: fetcher, logger: logger, now: time.Now}
	s.current.Store(&Snapshot{})
	return s
}

// Get returns the last applied snapshot without blocking.
func (s *Store) Get() *Snapshot {
	return s.current.Load()
}

// Invalidate makes the next Refresh bypass HTTP caches.
func (s *Store) Invalidate() {
	s.invalidated.Store(true)
}

// Refresh fetches stock and sales and swaps in a new snapshot. On failure the
// previous snapshot stays in place. A response overtaken by a newer refresh
// is dropped.
func (s *Store) Refresh(ctx context.Context) error {
	return s.refresh(ctx, false)
}

// RefreshNoCache is Refresh with the cache bypass applied to this call only.
// A pending Invalidate is left for the next plain Refresh.
func (s *Store) RefreshNoCache(ctx context.Context) error {
	return s.refresh(ctx, true)
}

func (s *Store) refresh(ctx context.Context, forced bool) error {
	seq := s.seq.Add(1)
	consumed := false
	if !forced {
		consumed = s.invalidated.Swap(false)
	}
	noCache := forced || consumed
	opts := stockapi.FetchOptions{NoCache: noCache}

	var (
		stock []models.StockItem
		sales []models.SaleRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stock, err = s.fetcher.ListStock(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.fetcher.ListSales(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		if consumed {
			s.invalidated.Store(true)
		}
		s.logger.Warn("inventory refresh failed, keeping previous snapshot",
			zap.Uint64("seq", seq),
			zap.Error(err),
		)
		return fmt.Errorf("refresh inventory: %w", err)
	}

	if !s.apply(&Snapshot{Stock: stock, Sales: sales, FetchedAt: s.now(), Seq: seq}) {
		s.logger.Debug("discarding superseded inventory response", zap.Uint64("seq", seq))
		return nil
	}

	s.logger.Debug("inventory refreshed",
		zap.Uint64("seq", seq),
		zap.Int("stock", len(stock)),
		zap.Int("sales", len(sales)),
		zap.Bool("no_cache", noCache),
	)
	return nil
}

func (s *Store) apply(snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Seq < s.applied {
		return false
	}
	s.applied = snap.Seq
	s.current.Store(snap)
	return true
}
