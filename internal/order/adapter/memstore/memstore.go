// Package memstore is an in-process order store with the same revision
// semantics as the PostgreSQL repository.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"orderhub/internal/order/app/core"
	"orderhub/internal/order/domain/models"
)

type Store struct {
	mu      sync.RWMutex
	orders  map[string]models.Order
	history map[string][]models.StatusLog
	outlets map[string]models.OutletInfo
	seq     map[string]int
	now     func() time.Time
}

func New(outlets ...models.OutletInfo) *Store {
	s := &Store{
		orders:  make(map[string]models.Order),
		history: make(map[string][]models.StatusLog),
		outlets: make(map[string]models.OutletInfo, len(outlets)),
		seq:     make(map[string]int),
		now:     time.Now,
	}
	for _, o := range outlets {
		s.outlets[o.ID] = o
	}
	return s
}

func (s *Store) Create(ctx context.Context, order models.Order, log *models.StatusLog) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return models.Order{}, fmt.Errorf("%w: order %s already exists", core.ErrStoreConflict, order.ID)
	}
	order.Revision = 1
	s.orders[order.ID] = order.Clone()
	if log != nil {
		s.history[order.ID] = append(s.history[order.ID], *log)
	}
	return order, nil
}

func (s *Store) Get(ctx context.Context, orderID string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, core.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *Store) Save(ctx context.Context, order models.Order, expectedRevision int64, log *models.StatusLog) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[order.ID]
	if !ok {
		return models.Order{}, core.ErrOrderNotFound
	}
	if stored.Revision != expectedRevision {
		return models.Order{}, fmt.Errorf("%w: order %s at revision %d, expected %d", core.ErrStoreConflict, order.ID, stored.Revision, expectedRevision)
	}
	order.Revision = expectedRevision + 1
	s.orders[order.ID] = order.Clone()
	if log != nil {
		s.history[order.ID] = append(s.history[order.ID], *log)
	}
	return order, nil
}

func (s *Store) ListByOutlet(ctx context.Context, outletID string) ([]models.Order, error) {
	return s.list(func(o models.Order) bool {
		return o.OutletID == outletID && o.Paid()
	}), nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.list(func(o models.Order) bool {
		return o.Customer.UserID == userID
	}), nil
}

func (s *Store) History(ctx context.Context, orderID string) ([]models.StatusLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, core.ErrOrderNotFound
	}
	return append([]models.StatusLog(nil), s.history[orderID]...), nil
}

// NextNumber returns ORD_YYYYMMDD_NNN with a per-day sequence.
func (s *Store) NextNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.now().UTC().Format("20060102")
	s.seq[day]++
	return fmt.Sprintf("ORD_%s_%03d", day, s.seq[day]), nil
}

func (s *Store) Outlet(ctx context.Context, outletID string) (models.OutletInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.outlets[outletID]
	if !ok {
		return models.OutletInfo{}, core.ErrOutletNotFound
	}
	return o, nil
}

// list returns matching orders newest first.
func (s *Store) list(match func(models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
