package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"Storefront/internal/cart"
)

func newCartCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the shopping cart",
	}
	cmd.AddCommand(
		newCartShowCmd(c),
		newCartAddCmd(c),
		newCartUpdateCmd(c),
		newCartRemoveCmd(c),
		newCartClearCmd(c),
		newCartValidateCmd(c),
	)
	return cmd
}

func newCartShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart and its totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines := c.app.Cart.Items()
			sum := cart.Summarize(lines)
			w := cmd.OutOrStdout()

			if c.jsonOut {
				return c.printJSON(w, struct {
					Items   []cart.Line  `json:"items"`
					Summary cart.Summary `json:"summary"`
				}{lines, sum})
			}
			if sum.Empty {
				_, err := fmt.Fprintln(w, "Your cart is empty.")
				return err
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tQTY\tUNIT\tSUBTOTAL")
			for _, l := range lines {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n",
					l.ID, l.Name, l.Quantity, l.UnitPrice(), l.UnitPrice()*float64(l.Quantity))
			}
			fmt.Fprintf(tw, "\t\t%d\t\t%s\n", sum.ItemCount, sum.TotalPrice.StringFixed(2))
			return tw.Flush()
		},
	}
}

func newCartAddCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a catalog product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := parseQuantity(args[1])
				if err != nil {
					return err
				}
				qty = n
			}

			out, err := c.app.AddProduct(cmd.Context(), args[0], qty)
			if err != nil {
				return fmt.Errorf("look up product %s: %w", args[0], err)
			}
			return c.outcome(cmd.OutOrStdout(), out)
		},
	}
}

func newCartUpdateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			out := c.app.Cart.UpdateItemQuantity(cmd.Context(), cart.ProductID(args[0]), qty)
			return c.outcome(cmd.OutOrStdout(), out)
		},
	}
}

func newCartRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.outcome(cmd.OutOrStdout(), c.app.Cart.RemoveItem(cmd.Context(), cart.ProductID(args[0])))
		},
	}
}

func newCartClearCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.outcome(cmd.OutOrStdout(), c.app.Cart.ClearCart(cmd.Context()))
		},
	}
}

func newCartValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every cart line against live stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := c.app.Cart.ValidateCartStock(cmd.Context())
			w := cmd.OutOrStdout()

			if c.jsonOut {
				if err := c.printJSON(w, report); err != nil {
					return err
				}
			} else if report.Valid {
				fmt.Fprintln(w, "All items are in stock.")
			} else {
				for _, issue := range report.Issues {
					fmt.Fprintln(w, "- "+issue)
				}
			}

			if !report.Valid {
				return fmt.Errorf("%d cart line(s) cannot be fulfilled", len(report.Issues))
			}
			return nil
		},
	}
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number", s)
	}
	return n, nil
}
