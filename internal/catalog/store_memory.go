package catalog

import (
	"context"
	"sort"
	"sync"

	"Storefront/internal/order"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[int64]Product
}

func NewMemStore() *MemStore {
	s := &MemStore{m: map[int64]Product{}}
	for _, p := range seedProducts() {
		s.m[p.ID] = p
	}
	return s
}

func seedProducts() []Product {
	return []Product{
		{ID: 1, Name: "Mechanical Keyboard", Price: 49.90, Stock: 12, CategoryName: "peripherals"},
		{ID: 2, Name: "Wireless Mouse", Price: 19.90, Stock: 30, CategoryName: "peripherals"},
		{ID: 3, Name: "USB-C Hub", Price: 34.50, Stock: 5, CategoryName: "accessories"},
		{ID: 4, Name: "Laptop Stand", Price: 27.00, Stock: 0, CategoryName: "accessories"},
	}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id int64) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}

// Put inserts or replaces a product.
func (s *MemStore) Put(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[p.ID] = p
}

// SetStock changes the stock of an existing product and reports whether it
// exists.
func (s *MemStore) SetStock(id int64, stock int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.m[id]
	if !ok {
		return false
	}
	p.Stock = stock
	s.m[id] = p
	return true
}

func (s *MemStore) Reserve(ctx context.Context, productID string, qty int) error {
	id, err := parseID(productID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.m[id]
	if !ok {
		return order.ErrUnknownProduct
	}
	if p.Stock < qty {
		return order.ErrOutOfStock
	}
	p.Stock -= qty
	s.m[id] = p
	return nil
}

func (s *MemStore) Release(ctx context.Context, productID string, qty int) error {
	id, err := parseID(productID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.m[id]; ok {
		p.Stock += qty
		s.m[id] = p
	}
	return nil
}
