package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/internal/catalog"
	"Storefront/internal/config"
	"Storefront/internal/order"
	"Storefront/pkg/kit"
)

func main() {
	service := "catalog"

	cfg, err := config.Load(getenv("STOREFRONT_CONFIG", ""))
	if err != nil {
		kit.NewLogger(service, "").Fatal("load config", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	shutdown, err := kit.InitTracer(ctx, service, cfg.TracingEndpoint)
	if err != nil {
		log.Fatal("init tracer", zap.Error(err))
	}
	defer func() { _ = shutdown(context.Background()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tokens := auth.NewTokenMaker(cfg.Catalog.JWTSecret, cfg.Catalog.TokenTTL)
	s := &catalog.Server{Log: log}
	orders := &order.Server{Log: log.Named("order"), Tokens: tokens}
	accounts := &auth.Server{Log: log.Named("auth"), Tokens: tokens}

	if dsn := cfg.Catalog.DatabaseURL; dsn != "" {
		pg, err := catalog.OpenPostgres(dsn)
		if err != nil {
			log.Fatal("open postgres", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()

		s.Store = pg
		orders.Store = order.NewPostgresStore(pg.DB())
		orders.Stock = pg
		accounts.Users = auth.NewPostgresUsers(pg.DB())
		log.Info("using postgres store")
	} else {
		mem := catalog.NewMemStore()
		s.Store = mem
		orders.Store = order.NewMemStore()
		orders.Stock = mem
		accounts.Users = auth.NewMemUsers()
		log.Info("using in-memory store")
	}

	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:             log,
		Service:         service,
		Registry:        reg,
		MetricsEnabled:  cfg.Catalog.MetricsEnabled,
		MetricsToken:    cfg.Catalog.MetricsToken,
		RateLimitPerMin: cfg.Catalog.RateLimitPerMin,
		Orders:          orders.Routes(),
		Auth:            accounts.Routes(),
	})

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Catalog.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
