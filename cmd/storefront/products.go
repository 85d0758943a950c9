package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"Storefront/internal/cart"
)

func newProductsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the catalog with live stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ps, err := c.app.Products(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(cmd.OutOrStdout(), ps)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
			for _, p := range ps {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", p.ID, p.Name, p.UnitPrice(), stockText(p))
			}
			return tw.Flush()
		},
	}
}

func stockText(p cart.Product) string {
	switch {
	case p.Stock == nil:
		return "?"
	case *p.Stock <= 0:
		return "sold out"
	default:
		return fmt.Sprint(*p.Stock)
	}
}
