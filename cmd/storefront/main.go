package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Storefront/internal/config"
	"Storefront/internal/storefront"
	"Storefront/pkg/kit"
)

// cli carries what every subcommand needs once the root has run.
type cli struct {
	configPath string
	jsonOut    bool

	log *zap.Logger
	app *storefront.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, c := newRootCmd()
	err := root.ExecuteContext(ctx)
	if cerr := c.close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Shopping cart client for the storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("STOREFRONT_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newProductsCmd(c),
		newCartCmd(c),
		newCheckoutCmd(c),
		newOrdersCmd(c),
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
	)
	return root, c
}

func (c *cli) open(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	c.log = kit.NewLogger(storefront.Service, cfg.LogLevel)
	c.app, err = storefront.New(ctx, cfg, c.log)
	return err
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close(context.WithoutCancel(ctx))
	_ = c.log.Sync()
	return err
}
