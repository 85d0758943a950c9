package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/internal/cartstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStock answers stock checks from a map. Unknown ids report ok=false.
type fakeStock struct {
	mu       sync.Mutex
	stock    map[string]int
	calls    int
	inFlight map[string]int
	maxPar   map[string]int

	// hook runs inside CheckStock before the answer is read.
	hook func(ctx context.Context, id string)
}

func newFakeStock(stock map[string]int) *fakeStock {
	return &fakeStock{stock: stock, inFlight: map[string]int{}, maxPar: map[string]int{}}
}

func (f *fakeStock) CheckStock(ctx context.Context, id string) (int, bool) {
	f.mu.Lock()
	f.calls++
	f.inFlight[id]++
	if f.inFlight[id] > f.maxPar[id] {
		f.maxPar[id] = f.inFlight[id]
	}
	f.mu.Unlock()

	if f.hook != nil {
		f.hook(ctx, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight[id]--
	n, ok := f.stock[id]
	return n, ok
}

func (f *fakeStock) set(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[id] = n
}

func (f *fakeStock) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingBlobs struct {
	*cartstore.MemStore
}

func (failingBlobs) Set(context.Context, string, []byte) error { return errors.New("quota exceeded") }

func ptr[T any](v T) *T { return &v }

func product(id, name string, price float64) cart.Product {
	return cart.Product{ID: cart.ProductID(id), Name: name, Price: ptr(price)}
}

type harness struct {
	mgr   *cart.Manager
	stock *fakeStock
	blobs *cartstore.MemStore
	store *cartstore.Persistent
}

func newHarness(t *testing.T, stock map[string]int, mutate ...func(*cart.Deps)) *harness {
	t.Helper()

	h := &harness{stock: newFakeStock(stock), blobs: cartstore.NewMemStore()}
	h.store = cartstore.New(h.blobs, "", zap.NewNop())
	deps := cart.Deps{Store: h.store, Stock: h.stock}
	for _, fn := range mutate {
		fn(&deps)
	}
	h.mgr = cart.NewManager(context.Background(), deps)
	return h
}

type row struct {
	ID  cart.ProductID
	Qty int
}

func rows(lines []cart.Line) []row {
	out := make([]row, 0, len(lines))
	for _, l := range lines {
		out = append(out, row{l.ID, l.Quantity})
	}
	return out
}

// requireState checks the in-memory cart and that the stored blob matches it.
func (h *harness) requireState(t *testing.T, want ...row) {
	t.Helper()

	if want == nil {
		want = []row{}
	}
	if diff := cmp.Diff(want, rows(h.mgr.Items())); diff != "" {
		t.Fatalf("cart mismatch (-want +got):\n%s", diff)
	}

	raw, found, err := h.blobs.Get(context.Background(), cartstore.DefaultKey)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	if !found {
		if len(want) != 0 {
			t.Fatalf("blob missing, want %d lines", len(want))
		}
		return
	}
	stored, err := cartstore.Decode(raw)
	if err != nil {
		t.Fatalf("decode blob: %v", err)
	}
	if diff := cmp.Diff(want, rows(stored)); diff != "" {
		t.Fatalf("stored cart mismatch (-want +got):\n%s", diff)
	}
}

func requireOutcome(t *testing.T, got cart.Outcome, ok bool, reason cart.Reason) {
	t.Helper()
	if got.OK != ok || got.Reason != reason {
		t.Fatalf("outcome=%+v want ok=%v reason=%s", got, ok, reason)
	}
	if got.Message == "" {
		t.Fatalf("outcome without message: %+v", got)
	}
}

func TestAddItem_NewAndMerge(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 10, "2": 10})
	ctx := context.Background()

	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), 2), true, cart.ReasonOK)
	requireOutcome(t, h.mgr.AddItem(ctx, product("2", "Teapot", 20), 1), true, cart.ReasonOK)
	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), 3), true, cart.ReasonOK)

	h.requireState(t, row{"1", 5}, row{"2", 1})
}

func TestAddItem_NumericAndStringIDsMerge(t *testing.T) {
	h := newHarness(t, map[string]int{"7": 10})
	ctx := context.Background()

	var fromAPI cart.Product
	if err := json.Unmarshal([]byte(`{"id": 7, "name": "Kettle", "price": 30}`), &fromAPI); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	requireOutcome(t, h.mgr.AddItem(ctx, fromAPI, 1), true, cart.ReasonOK)
	requireOutcome(t, h.mgr.AddItem(ctx, product(" 7 ", "Kettle", 30), 2), true, cart.ReasonOK)

	h.requireState(t, row{"7", 3})
}

func TestAddItem_SoftCapReportsRoom(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5})
	ctx := context.Background()

	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), 3), true, cart.ReasonOK)

	out := h.mgr.AddItem(ctx, product("1", "Mug", 8), 3)
	requireOutcome(t, out, false, cart.ReasonInsufficientStock)
	if out.Message != "Only 2 more of Mug can be added to your cart." {
		t.Fatalf("message=%q", out.Message)
	}
	h.requireState(t, row{"1", 3})
}

func TestAddItem_AtLimit(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 3})
	ctx := context.Background()

	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), 3), true, cart.ReasonOK)
	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), 1), false, cart.ReasonStockLimit)
	h.requireState(t, row{"1", 3})
}

func TestAddItem_SoldOut(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 0})

	out := h.mgr.AddItem(context.Background(), product("1", "Mug", 8), 1)
	requireOutcome(t, out, false, cart.ReasonSoldOut)
	if out.Message != "Mug is sold out." {
		t.Fatalf("message=%q", out.Message)
	}
	h.requireState(t)
}

func TestAddItem_StockUnknown(t *testing.T) {
	h := newHarness(t, map[string]int{})

	requireOutcome(t, h.mgr.AddItem(context.Background(), product("1", "Mug", 8), 1), false, cart.ReasonStockUnknown)
	h.requireState(t)
}

func TestAddItem_RejectsBadInputWithoutCheckingStock(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5})
	ctx := context.Background()

	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), 0), false, cart.ReasonInvalidQuantity)
	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), -2), false, cart.ReasonInvalidQuantity)
	requireOutcome(t, h.mgr.AddItem(ctx, product("  ", "Nameless", 1), 1), false, cart.ReasonInvalidProduct)

	if n := h.stock.callCount(); n != 0 {
		t.Fatalf("stock checked %d times", n)
	}
	h.requireState(t)
}

func TestAddItem_CanceledDuringCheck(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.stock.hook = func(context.Context, string) { cancel() }

	requireOutcome(t, h.mgr.AddItem(ctx, product("1", "Mug", 8), 1), false, cart.ReasonCanceled)
	h.requireState(t)
}

// An approved add is advisory: stock that drops afterwards leaves the cart as
// is and only shows up in validation.
func TestAddItem_StockDropAfterApproval(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5})

	requireOutcome(t, h.mgr.AddItem(context.Background(), product("1", "Mug", 8), 4), true, cart.ReasonOK)
	h.stock.set("1", 1)

	h.requireState(t, row{"1", 4})

	report := h.mgr.ValidateCartStock(context.Background())
	if report.Valid {
		t.Fatalf("validation should flag the shortfall")
	}
}

func TestAddItem_ConcurrentChecksOverlapByDefault(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 100})
	testConcurrentAdds(t, h, 2)
}

func TestAddItem_SerializeByProduct(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 100}, func(d *cart.Deps) { d.SerializeByProduct = true })
	testConcurrentAdds(t, h, 1)
}

func testConcurrentAdds(t *testing.T, h *harness, wantMaxParallel int) {
	t.Helper()

	var arrived sync.WaitGroup
	arrived.Add(2)
	h.stock.hook = func(context.Context, string) {
		arrived.Done()
		if wantMaxParallel > 1 {
			arrived.Wait()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.mgr.AddItem(context.Background(), product("1", "Mug", 8), 1)
		}()
	}
	wg.Wait()

	h.stock.mu.Lock()
	got := h.stock.maxPar["1"]
	h.stock.mu.Unlock()
	if got != wantMaxParallel {
		t.Fatalf("max parallel checks=%d want %d", got, wantMaxParallel)
	}
	h.requireState(t, row{"1", 2})
}

func TestUpdateItemQuantity(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5, "2": 5})
	ctx := context.Background()

	h.mgr.AddItem(ctx, product("1", "Mug", 8), 1)
	h.mgr.AddItem(ctx, product("2", "Teapot", 20), 2)

	requireOutcome(t, h.mgr.UpdateItemQuantity(ctx, "1", 4), true, cart.ReasonOK)
	h.requireState(t, row{"1", 4}, row{"2", 2})

	out := h.mgr.UpdateItemQuantity(ctx, "1", 6)
	requireOutcome(t, out, false, cart.ReasonInsufficientStock)
	if out.Message != "Cannot set Mug to 6: only 5 in stock." {
		t.Fatalf("message=%q", out.Message)
	}
	h.requireState(t, row{"1", 4}, row{"2", 2})

	requireOutcome(t, h.mgr.UpdateItemQuantity(ctx, "1", 0), true, cart.ReasonOK)
	h.requireState(t, row{"2", 2})

	requireOutcome(t, h.mgr.UpdateItemQuantity(ctx, "2", -1), false, cart.ReasonInvalidQuantity)
	h.requireState(t, row{"2", 2})
}

func TestUpdateItemQuantity_NotInCart(t *testing.T) {
	h := newHarness(t, map[string]int{"9": 5})

	requireOutcome(t, h.mgr.UpdateItemQuantity(context.Background(), "9", 1), false, cart.ReasonNotInCart)
	if n := h.stock.callCount(); n != 0 {
		t.Fatalf("stock checked %d times", n)
	}
}

func TestUpdateItemQuantity_StockUnknownKeepsQuantity(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5})
	ctx := context.Background()

	h.mgr.AddItem(ctx, product("1", "Mug", 8), 2)
	delete(h.stock.stock, "1")

	requireOutcome(t, h.mgr.UpdateItemQuantity(ctx, "1", 1), false, cart.ReasonStockUnknown)
	h.requireState(t, row{"1", 2})
}

func TestRemoveItem_Idempotent(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5, "2": 5})
	ctx := context.Background()

	h.mgr.AddItem(ctx, product("1", "Mug", 8), 1)
	h.mgr.AddItem(ctx, product("2", "Teapot", 20), 1)

	requireOutcome(t, h.mgr.RemoveItem(ctx, "1"), true, cart.ReasonOK)
	requireOutcome(t, h.mgr.RemoveItem(ctx, "1"), true, cart.ReasonOK)
	requireOutcome(t, h.mgr.RemoveItem(ctx, "404"), true, cart.ReasonOK)
	h.requireState(t, row{"2", 1})
}

func TestClearCart(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5})
	ctx := context.Background()

	h.mgr.AddItem(ctx, product("1", "Mug", 8), 1)
	requireOutcome(t, h.mgr.ClearCart(ctx), true, cart.ReasonOK)
	h.requireState(t)

	raw, _, _ := h.blobs.Get(ctx, cartstore.DefaultKey)
	if string(raw) != "[]" {
		t.Fatalf("blob=%q", raw)
	}
	if !h.mgr.IsEmpty() {
		t.Fatalf("cart should be empty")
	}
}

func TestValidateCartStock(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 10, "2": 10, "3": 10, "4": 10})
	ctx := context.Background()

	empty := h.mgr.ValidateCartStock(ctx)
	if !empty.Valid || empty.Issues == nil || len(empty.Issues) != 0 {
		t.Fatalf("empty cart report=%+v", empty)
	}

	h.mgr.AddItem(ctx, product("1", "Mug", 8), 2)
	h.mgr.AddItem(ctx, product("2", "Teapot", 20), 3)
	h.mgr.AddItem(ctx, product("3", "Kettle", 30), 1)
	h.mgr.AddItem(ctx, product("4", "Spoon", 2), 1)

	h.stock.set("1", 0)
	h.stock.set("2", 1)
	delete(h.stock.stock, "3")

	report := h.mgr.ValidateCartStock(ctx)
	want := cart.StockReport{
		Valid: false,
		Issues: []string{
			"Mug is sold out.",
			"Teapot: 3 in cart but only 1 in stock (short by 2).",
			"Kettle: cannot verify stock.",
		},
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	h.requireState(t, row{"1", 2}, row{"2", 3}, row{"3", 1}, row{"4", 1})
}

func TestNewManager_RestoresStoredCart(t *testing.T) {
	ctx := context.Background()
	blobs := cartstore.NewMemStore()
	if err := blobs.Set(ctx, cartstore.DefaultKey, []byte(
		`[{"id": 2, "name": "Teapot", "price": 20, "quantity": 1}, {"id": "1", "name": "Mug", "quantity": 4}]`,
	)); err != nil {
		t.Fatalf("set: %v", err)
	}

	mgr := cart.NewManager(ctx, cart.Deps{
		Store: cartstore.New(blobs, "", nil),
		Stock: newFakeStock(map[string]int{"1": 10}),
	})

	if diff := cmp.Diff([]row{{"2", 1}, {"1", 4}}, rows(mgr.Items())); diff != "" {
		t.Fatalf("restored cart mismatch (-want +got):\n%s", diff)
	}

	requireOutcome(t, mgr.AddItem(ctx, product("1", "Mug", 8), 1), true, cart.ReasonOK)
	if l, ok := mgr.Line("1"); !ok || l.Quantity != 5 {
		t.Fatalf("line=%+v ok=%v", l, ok)
	}
}

func TestSaveFailure_KeepsMemoryStateAndCounts(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := cart.NewMetrics(reg)

	mgr := cart.NewManager(ctx, cart.Deps{
		Store:   cartstore.New(failingBlobs{cartstore.NewMemStore()}, "", nil),
		Stock:   newFakeStock(map[string]int{"1": 10}),
		Metrics: metrics,
	})

	requireOutcome(t, mgr.AddItem(ctx, product("1", "Mug", 8), 2), true, cart.ReasonOK)
	if diff := cmp.Diff([]row{{"1", 2}}, rows(mgr.Items())); diff != "" {
		t.Fatalf("cart mismatch (-want +got):\n%s", diff)
	}

	if got := testutil.ToFloat64(metrics.SaveErrors); got != 1 {
		t.Fatalf("save errors=%v want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Outcomes.WithLabelValues("add", "ok")); got != 1 {
		t.Fatalf("add outcomes=%v want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Lines); got != 1 {
		t.Fatalf("lines gauge=%v want 1", got)
	}
}

func TestItems_ReturnsCopy(t *testing.T) {
	h := newHarness(t, map[string]int{"1": 5})
	ctx := context.Background()
	h.mgr.AddItem(ctx, product("1", "Mug", 8), 1)

	items := h.mgr.Items()
	items[0].Quantity = 99

	h.requireState(t, row{"1", 1})
}
