package cart

import "sync"

// productLocks hands out one mutex per product id and forgets it once nobody
// holds or waits on it.
type productLocks struct {
	mu sync.Mutex
	m  map[ProductID]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{m: make(map[ProductID]*productLock)}
}

func (p *productLocks) lock(id ProductID) func() {
	p.mu.Lock()
	l, ok := p.m[id]
	if !ok {
		l = &productLock{}
		p.m[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.m, id)
		}
		p.mu.Unlock()
	}
}
