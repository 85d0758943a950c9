package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Storefront/internal/cartstore"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, DefaultAPIURL, cfg.APIURL)
	require.Equal(t, DefaultStockTimeout, cfg.StockTimeout)
	require.Equal(t, cartstore.DriverSQLite, cfg.Store.Driver)
	require.Equal(t, cartstore.DefaultKey, cfg.Store.CartKey)
	require.False(t, cfg.Cart.SerializeByProduct)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
api_url: https://shop.example.com/api
stock_timeout: 1500ms
store:
  driver: redis
  dsn: localhost:6379
cart:
  serialize_by_product: true
`)
	t.Setenv("STOREFRONT_STOCK_TIMEOUT", "2s")
	t.Setenv("STOREFRONT_STORE_NAMESPACE", "tenant-a")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://shop.example.com/api", cfg.APIURL)
	require.Equal(t, 2*time.Second, cfg.StockTimeout)
	require.Equal(t, cartstore.Options{
		Driver:    cartstore.DriverRedis,
		DSN:       "localhost:6379",
		Namespace: "tenant-a",
	}, cfg.StoreOptions())
	require.True(t, cfg.Cart.SerializeByProduct)
	require.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	_, err := Load(writeFile(t, "api_uri: http://x\n"))
	require.Error(t, err)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	require.Equal(t, DefaultAPIURL, cfg.APIURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestApplyEnv_BadValues(t *testing.T) {
	vars := map[string]string{
		"STOREFRONT_STOCK_TIMEOUT":        "soon",
		"STOREFRONT_SERIALIZE_BY_PRODUCT": "maybe",
		"RATE_LIMIT_PER_MIN":              "lots",
		"PORT":                            "9000",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})

	require.ErrorContains(t, err, "STOREFRONT_STOCK_TIMEOUT")
	require.ErrorContains(t, err, "STOREFRONT_SERIALIZE_BY_PRODUCT")
	require.ErrorContains(t, err, "RATE_LIMIT_PER_MIN")
	require.Equal(t, "9000", cfg.Catalog.Port)
	require.Equal(t, DefaultStockTimeout, cfg.StockTimeout)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"relative url":   func(c *Config) { c.APIURL = "/api" },
		"zero timeout":   func(c *Config) { c.StockTimeout = 0 },
		"unknown driver": func(c *Config) { c.Store.Driver = "floppy" },
		"missing dsn":    func(c *Config) { c.Store.DSN = "" },
		"empty key":      func(c *Config) { c.Store.CartKey = "" },
		"no workers":     func(c *Config) { c.Cart.ValidateConcurrency = 0 },
		"no jwt secret":  func(c *Config) { c.Catalog.JWTSecret = "" },
		"zero token ttl": func(c *Config) { c.Catalog.TokenTTL = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	mem := Default()
	mem.Store = Store{Driver: cartstore.DriverMemory, CartKey: "k"}
	require.NoError(t, mem.Validate())
}
