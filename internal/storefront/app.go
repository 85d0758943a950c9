package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/internal/cart"
	"Storefront/internal/cartstore"
	"Storefront/internal/config"
	"Storefront/internal/inventory"
	"Storefront/internal/order"
	"Storefront/pkg/kit"
)

const Service = "storefront"

var ErrCartEmpty = errors.New("cart is empty")

// StockError reports the lines that failed the pre-checkout stock check.
type StockError struct {
	Issues []string
}

func (e *StockError) Error() string {
	return "stock check failed: " + strings.Join(e.Issues, " ")
}

// App is the storefront client: one cart, one session and the backend clients
// that serve them.
type App struct {
	Config   config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry

	Blobs     cartstore.Blobs
	Cart      *cart.Manager
	Inventory *inventory.Client
	Orders    *order.Client
	Auth      *auth.Client
	Tokens    *auth.TokenStore

	session *auth.Holder
	closers []func(context.Context) error
}

// New opens the configured store and wires the client.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	shutdown, err := kit.InitTracer(ctx, Service, cfg.TracingEndpoint)
	if err != nil {
		return nil, err
	}

	blobs, err := cartstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	a := NewWithBlobs(ctx, cfg, log, blobs)
	a.closers = append(a.closers, func(context.Context) error { return blobs.Close() }, shutdown)
	return a, nil
}

// NewWithBlobs wires the client on top of an already open blob store.
func NewWithBlobs(ctx context.Context, cfg config.Config, log *zap.Logger, blobs cartstore.Blobs) *App {
	if log == nil {
		log = zap.NewNop()
	}
	reg := prometheus.NewRegistry()

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Blobs:    blobs,
		Tokens:   auth.NewTokenStore(blobs),
		session:  &auth.Holder{},
	}

	rt := &auth.Transport{Base: kit.DefaultTransport(), Source: a.session}
	api := kit.NewAPIClient(cfg.APIURL, cfg.RequestTimeout, rt, log)

	a.Inventory = inventory.NewClient(api, log.Named("inventory"))
	a.Inventory.StockTimeout = cfg.StockTimeout
	a.Inventory.Metrics = inventory.NewMetrics(reg)

	a.Orders = order.NewClient(api, log.Named("order"))
	a.Auth = auth.NewClient(api, log.Named("auth"))

	a.restoreSession(ctx)

	a.Cart = cart.NewManager(ctx, cart.Deps{
		Store:               cartstore.New(blobs, cfg.Store.CartKey, log.Named("cartstore")),
		Stock:               a.Inventory,
		Log:                 log.Named("cart"),
		Metrics:             cart.NewMetrics(reg),
		SerializeByProduct:  cfg.Cart.SerializeByProduct,
		ValidateConcurrency: cfg.Cart.ValidateConcurrency,
	})
	return a
}

func (a *App) restoreSession(ctx context.Context) {
	sess, err := a.Tokens.Load(ctx)
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return
	case err != nil:
		a.Log.Warn("load session failed", zap.Error(err))
		return
	}

	if err := sess.Valid(time.Now()); err != nil {
		a.Log.Info("stored session dropped", zap.Error(err))
		_ = a.Tokens.Clear(ctx)
		return
	}
	a.session.Set(sess.Token)
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c(ctx))
	}
	return errors.Join(errs...)
}

// AddProduct fetches a product from the catalog and adds it to the cart.
func (a *App) AddProduct(ctx context.Context, productID string, qty int) (cart.Outcome, error) {
	p, err := a.Inventory.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return cart.Outcome{}, err
	}
	return a.Cart.AddItem(ctx, p, qty), nil
}

func (a *App) Products(ctx context.Context) ([]cart.Product, error) {
	return a.Inventory.ListProducts(ctx)
}

// Checkout re-validates the cart against live stock and submits it. The cart
// is cleared only after the order is accepted.
func (a *App) Checkout(ctx context.Context, details order.CustomerDetails, opts order.Options) (order.Confirmation, error) {
	lines := a.Cart.Items()
	if len(lines) == 0 {
		return order.Confirmation{}, ErrCartEmpty
	}

	if report := a.Cart.ValidateCartStock(ctx); !report.Valid {
		return order.Confirmation{}, &StockError{Issues: report.Issues}
	}

	conf, err := a.Orders.Submit(ctx, order.FromCart(lines, details, opts))
	if err != nil {
		return order.Confirmation{}, err
	}

	a.Log.Info("order placed", zap.String("order_id", conf.OrderID), zap.Int("lines", len(lines)))
	a.Cart.ClearCart(ctx)
	return conf, nil
}

func (a *App) OrderHistory(ctx context.Context) ([]order.Order, error) {
	return a.Orders.List(ctx)
}

// Login authenticates and keeps the token for later runs.
func (a *App) Login(ctx context.Context, email, password string) (auth.Session, error) {
	sess, err := a.Auth.Login(ctx, email, password)
	if err != nil {
		return auth.Session{}, err
	}
	a.session.Set(sess.Token)
	if err := a.Tokens.Save(ctx, sess); err != nil {
		a.Log.Warn("save session failed", zap.Error(err))
	}
	return sess, nil
}

func (a *App) Register(ctx context.Context, email, password string) error {
	return a.Auth.Register(ctx, email, password)
}

// Logout drops the local session even when the backend call fails.
func (a *App) Logout(ctx context.Context) error {
	if _, ok := a.session.Token(); ok {
		a.Auth.Logout(ctx)
	}
	a.session.Clear()
	return a.Tokens.Clear(ctx)
}

// Session returns the current session, if one is stored and still valid.
func (a *App) Session(ctx context.Context) (auth.Session, error) {
	sess, err := a.Tokens.Load(ctx)
	if err != nil {
		return auth.Session{}, err
	}
	if err := sess.Valid(time.Now()); err != nil {
		return auth.Session{}, err
	}
	return sess, nil
}

// Healthy reports whether the store answers.
func (a *App) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.Blobs.Ping(ctx)
}
