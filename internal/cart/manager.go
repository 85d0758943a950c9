package cart

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tracerName = "Storefront/internal/cart"

	defaultValidateConcurrency = 4
)

// StockChecker reports the live stock of one product. ok is false when the
// figure could not be obtained; implementations never return errors.
type StockChecker interface {
	CheckStock(ctx context.Context, productID string) (stock int, ok bool)
}

// Store persists the whole cart under one key. Load never fails: a missing or
// unreadable blob yields an empty cart.
type Store interface {
	Load(ctx context.Context) []Line
	Save(ctx context.Context, lines []Line) error
}

type Deps struct {
	Store   Store
	Stock   StockChecker
	Log     *zap.Logger
	Tracer  trace.Tracer
	Metrics *Metrics

	// SerializeByProduct holds a per-product lock from the stock check until the
	// write completes, so two calls on one Manager cannot both approve against
	// the same stock figure. Off by default: the check is advisory and the
	// backend remains the authority on inventory.
	SerializeByProduct bool

	// ValidateConcurrency bounds parallel stock checks in ValidateCartStock.
	ValidateConcurrency int
}

// Manager owns the authoritative cart. Every mutation is written through to the
// Store before the operation returns.
//
// Stock checks run without holding the cart lock. Two overlapping calls may
// therefore act on the same, possibly stale, stock figure; only the decision and
// the write that follow a check are atomic.
type Manager struct {
	store   Store
	stock   StockChecker
	log     *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics
	locks   *productLocks

	validateLimit int

	mu    sync.Mutex
	lines []Line
}

func NewManager(ctx context.Context, deps Deps) *Manager {
	m := &Manager{
		store:         deps.Store,
		stock:         deps.Stock,
		log:           deps.Log,
		tracer:        deps.Tracer,
		metrics:       deps.Metrics,
		validateLimit: deps.ValidateConcurrency,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	if m.validateLimit <= 0 {
		m.validateLimit = defaultValidateConcurrency
	}
	if deps.SerializeByProduct {
		m.locks = newProductLocks()
	}

	m.lines = m.store.Load(ctx)
	if m.lines == nil {
		m.lines = []Line{}
	}
	m.metrics.setLines(len(m.lines))
	return m
}

// Items returns a copy of the cart lines in insertion order.
func (m *Manager) Items() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneLines(m.lines)
}

// Line returns the cart line for id, if any.
func (m *Manager) Line(id ProductID) (Line, bool) {
	id = trimID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if i := indexOf(m.lines, id); i >= 0 {
		return m.lines[i], true
	}
	return Line{}, false
}

func (m *Manager) AddItem(ctx context.Context, p Product, qty int) Outcome {
	p.ID = trimID(p.ID)

	ctx, span := m.tracer.Start(ctx, "cart.AddItem", trace.WithAttributes(
		attribute.String("product.id", string(p.ID)),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	out := m.addItem(ctx, p, qty)
	m.finish(span, "add", out)
	return out
}

func (m *Manager) addItem(ctx context.Context, p Product, qty int) Outcome {
	if qty <= 0 {
		return fail(ReasonInvalidQuantity, msgQuantityNotPositive())
	}
	if p.ID == "" {
		return fail(ReasonInvalidProduct, msgInvalidProduct())
	}

	if m.locks != nil {
		unlock := m.locks.lock(p.ID)
		defer unlock()
	}

	stock, ok := m.stock.CheckStock(ctx, string(p.ID))
	if ctx.Err() != nil {
		return fail(ReasonCanceled, msgCanceled())
	}
	if !ok {
		m.log.Warn("add item: stock unknown", zap.String("product_id", string(p.ID)))
		return fail(ReasonStockUnknown, msgCannotVerify(p))
	}
	if stock <= 0 {
		return fail(ReasonSoldOut, msgSoldOut(p))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneLines(m.lines)
	idx := indexOf(next, p.ID)
	existing := 0
	if idx >= 0 {
		existing = next[idx].Quantity
	}

	if existing+qty > stock {
		room := stock - existing
		if room <= 0 {
			return fail(ReasonStockLimit, msgAtLimit(p))
		}
		return fail(ReasonInsufficientStock, msgMaxAddable(p, room))
	}

	if idx >= 0 {
		next[idx].Quantity += qty
	} else {
		next = append(next, Line{Product: p, Quantity: qty})
	}

	m.commitLocked(ctx, next)
	return succeed(msgAdded(p, qty))
}

// UpdateItemQuantity sets the quantity of an existing line; 0 removes it. Unlike
// AddItem it refuses outright when the requested quantity exceeds live stock.
func (m *Manager) UpdateItemQuantity(ctx context.Context, id ProductID, qty int) Outcome {
	id = trimID(id)

	ctx, span := m.tracer.Start(ctx, "cart.UpdateItemQuantity", trace.WithAttributes(
		attribute.String("product.id", string(id)),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	out := m.updateItemQuantity(ctx, id, qty)
	m.finish(span, "update", out)
	return out
}

func (m *Manager) updateItemQuantity(ctx context.Context, id ProductID, qty int) Outcome {
	if qty < 0 {
		return fail(ReasonInvalidQuantity, msgQuantityNegative())
	}

	line, found := m.Line(id)
	if !found {
		return fail(ReasonNotInCart, msgNotInCart(id))
	}

	if m.locks != nil {
		unlock := m.locks.lock(id)
		defer unlock()
	}

	stock, ok := m.stock.CheckStock(ctx, string(id))
	if ctx.Err() != nil {
		return fail(ReasonCanceled, msgCanceled())
	}
	if !ok {
		m.log.Warn("update quantity: stock unknown", zap.String("product_id", string(id)))
		return fail(ReasonStockUnknown, msgCannotVerify(line.Product))
	}
	if qty > stock {
		return fail(ReasonInsufficientStock, msgUpdateExceedsStock(line.Product, qty, stock))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneLines(m.lines)
	idx := indexOf(next, id)
	if idx < 0 {
		// removed by another call while the check was in flight
		return fail(ReasonNotInCart, msgNotInCart(id))
	}

	if qty == 0 {
		next = append(next[:idx], next[idx+1:]...)
		m.commitLocked(ctx, next)
		return succeed(msgRemoved(id))
	}

	next[idx].Quantity = qty
	m.commitLocked(ctx, next)
	return succeed(msgUpdated(line.Product, qty))
}

// RemoveItem drops the line for id. Removing an absent product succeeds.
func (m *Manager) RemoveItem(ctx context.Context, id ProductID) Outcome {
	id = trimID(id)

	ctx, span := m.tracer.Start(ctx, "cart.RemoveItem", trace.WithAttributes(
		attribute.String("product.id", string(id)),
	))
	defer span.End()

	m.mu.Lock()
	next := make([]Line, 0, len(m.lines))
	for _, l := range m.lines {
		if l.ID != id {
			next = append(next, l)
		}
	}
	m.commitLocked(ctx, next)
	m.mu.Unlock()

	out := succeed(msgRemoved(id))
	m.finish(span, "remove", out)
	return out
}

func (m *Manager) ClearCart(ctx context.Context) Outcome {
	ctx, span := m.tracer.Start(ctx, "cart.ClearCart")
	defer span.End()

	m.mu.Lock()
	m.commitLocked(ctx, []Line{})
	m.mu.Unlock()

	out := succeed(msgCleared())
	m.finish(span, "clear", out)
	return out
}

// ValidateCartStock checks every line against live stock without touching the
// cart. Issues are reported in cart order.
func (m *Manager) ValidateCartStock(ctx context.Context) StockReport {
	ctx, span := m.tracer.Start(ctx, "cart.ValidateCartStock")
	defer span.End()

	lines := m.Items()
	found := make([]string, len(lines))

	var g errgroup.Group
	g.SetLimit(m.validateLimit)
	for i, l := range lines {
		i, l := i, l
		g.Go(func() error {
			found[i] = m.stockIssue(ctx, l)
			return nil
		})
	}
	_ = g.Wait()

	issues := []string{}
	for _, s := range found {
		if s != "" {
			issues = append(issues, s)
		}
	}

	span.SetAttributes(
		attribute.Int("cart.lines", len(lines)),
		attribute.Int("cart.issues", len(issues)),
	)
	return StockReport{Valid: len(issues) == 0, Issues: issues}
}

func (m *Manager) stockIssue(ctx context.Context, l Line) string {
	stock, ok := m.stock.CheckStock(ctx, string(l.ID))
	switch {
	case !ok:
		m.log.Warn("validate: stock unknown", zap.String("product_id", string(l.ID)))
		return issueUnverifiable(l.Product)
	case stock <= 0:
		return issueSoldOut(l.Product)
	case l.Quantity > stock:
		return issueInsufficient(l.Product, l.Quantity, stock)
	default:
		return ""
	}
}

// commitLocked swaps in the new state and writes it through. A committed change
// is saved even if the caller's context was canceled after the decision.
func (m *Manager) commitLocked(ctx context.Context, next []Line) {
	m.lines = next
	m.metrics.setLines(len(next))

	if err := m.store.Save(context.WithoutCancel(ctx), cloneLines(next)); err != nil {
		m.metrics.saveFailed()
		m.log.Error("cart save failed", zap.Error(err), zap.Int("lines", len(next)))
	}
}

func (m *Manager) finish(span trace.Span, op string, out Outcome) {
	span.SetAttributes(
		attribute.Bool("cart.ok", out.OK),
		attribute.String("cart.reason", string(out.Reason)),
	)
	m.metrics.observe(op, out)
}

func trimID(id ProductID) ProductID {
	return ProductID(strings.TrimSpace(string(id)))
}
