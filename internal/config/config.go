package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"Storefront/internal/cartstore"
)

const (
	DefaultAPIURL         = "http://localhost:8000/api"
	DefaultRequestTimeout = 10 * time.Second
	DefaultStockTimeout   = 3 * time.Second
	DefaultCatalogPort    = "8000"
	DefaultTokenTTL       = 15 * time.Minute
)

type Config struct {
	APIURL          string        `yaml:"api_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	StockTimeout    time.Duration `yaml:"stock_timeout"`
	LogLevel        string        `yaml:"log_level"`
	TracingEndpoint string        `yaml:"tracing_endpoint"`

	Store   Store   `yaml:"store"`
	Cart    Cart    `yaml:"cart"`
	Catalog Catalog `yaml:"catalog"`
}

// Store selects where the cart and session token are kept.
type Store struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Namespace string `yaml:"namespace"`
	CartKey   string `yaml:"cart_key"`
}

type Cart struct {
	SerializeByProduct  bool `yaml:"serialize_by_product"`
	ValidateConcurrency int  `yaml:"validate_concurrency"`
}

// Catalog configures the local catalog and order backend.
type Catalog struct {
	Port            string `yaml:"port"`
	DatabaseURL     string `yaml:"database_url"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	MetricsToken    string `yaml:"metrics_token"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when nothing is set. The cart lives
// in a SQLite file under the user's config directory.
func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		RequestTimeout: DefaultRequestTimeout,
		StockTimeout:   DefaultStockTimeout,
		LogLevel:       "info",
		Store: Store{
			Driver:    cartstore.DriverSQLite,
			DSN:       defaultSQLitePath(),
			Namespace: "storefront",
			CartKey:   cartstore.DefaultKey,
		},
		Cart: Cart{ValidateConcurrency: 4},
		Catalog: Catalog{
			Port:            DefaultCatalogPort,
			RateLimitPerMin: 600,
			JWTSecret:       "dev-secret",
			TokenTTL:        DefaultTokenTTL,
		},
	}
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "storefront", "client.db")
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then the environment, and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := env{lookup: lookup}

	e.str("STOREFRONT_API_URL", &c.APIURL)
	e.duration("STOREFRONT_REQUEST_TIMEOUT", &c.RequestTimeout)
	e.duration("STOREFRONT_STOCK_TIMEOUT", &c.StockTimeout)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.TracingEndpoint)

	e.str("STOREFRONT_STORE_DRIVER", &c.Store.Driver)
	e.str("STOREFRONT_STORE_DSN", &c.Store.DSN)
	e.str("STOREFRONT_STORE_NAMESPACE", &c.Store.Namespace)
	e.str("STOREFRONT_CART_KEY", &c.Store.CartKey)

	e.boolean("STOREFRONT_SERIALIZE_BY_PRODUCT", &c.Cart.SerializeByProduct)
	e.integer("STOREFRONT_VALIDATE_CONCURRENCY", &c.Cart.ValidateConcurrency)

	e.str("PORT", &c.Catalog.Port)
	e.str("DATABASE_URL", &c.Catalog.DatabaseURL)
	e.boolean("METRICS_ENABLED", &c.Catalog.MetricsEnabled)
	e.str("METRICS_TOKEN", &c.Catalog.MetricsToken)
	e.integer("RATE_LIMIT_PER_MIN", &c.Catalog.RateLimitPerMin)
	e.str("JWT_SECRET", &c.Catalog.JWTSecret)
	e.duration("TOKEN_TTL", &c.Catalog.TokenTTL)

	return errors.Join(e.errs...)
}

// env reads overrides; unset and empty variables leave the value alone.
type env struct {
	lookup lookupFunc
	errs   []error
}

func (e *env) get(k string) (string, bool) {
	v, ok := e.lookup(k)
	return v, ok && v != ""
}

func (e *env) str(k string, dst *string) {
	if v, ok := e.get(k); ok {
		*dst = v
	}
}

func (e *env) duration(k string, dst *time.Duration) {
	v, ok := e.get(k)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return
	}
	*dst = d
}

func (e *env) boolean(k string, dst *bool) {
	v, ok := e.get(k)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return
	}
	*dst = b
}

func (e *env) integer(k string, dst *int) {
	v, ok := e.get(k)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return
	}
	*dst = n
}

func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q: must be an absolute http(s) URL", c.APIURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.StockTimeout <= 0 {
		errs = append(errs, errors.New("stock_timeout must be positive"))
	}

	switch c.Store.Driver {
	case cartstore.DriverMemory:
	case cartstore.DriverSQLite, cartstore.DriverRedis, cartstore.DriverPostgres, cartstore.DriverFirestore:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: unknown", c.Store.Driver))
	}
	if c.Store.CartKey == "" {
		errs = append(errs, errors.New("store.cart_key must not be empty"))
	}

	if c.Cart.ValidateConcurrency < 1 {
		errs = append(errs, errors.New("cart.validate_concurrency must be at least 1"))
	}
	if c.Catalog.RateLimitPerMin < 0 {
		errs = append(errs, errors.New("catalog.rate_limit_per_min must not be negative"))
	}
	if c.Catalog.JWTSecret == "" {
		errs = append(errs, errors.New("catalog.jwt_secret must not be empty"))
	}
	if c.Catalog.TokenTTL <= 0 {
		errs = append(errs, errors.New("catalog.token_ttl must be positive"))
	}

	return errors.Join(errs...)
}

// StoreOptions maps the store section onto cartstore.Open.
func (c Config) StoreOptions() cartstore.Options {
	return cartstore.Options{
		Driver:    c.Store.Driver,
		DSN:       c.Store.DSN,
		Namespace: c.Store.Namespace,
	}
}
