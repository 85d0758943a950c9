package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"Storefront/internal/order"
	"Storefront/internal/storefront"
)

func newCheckoutCmd(c *cli) *cobra.Command {
	var (
		details order.CustomerDetails
		opts    order.Options
		ship    string
		pay     string
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Re-check stock and place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Shipping = order.ShippingMethod(ship)
			opts.Payment = order.PaymentMethod(pay)

			conf, err := c.app.Checkout(cmd.Context(), details, opts)
			w := cmd.OutOrStdout()

			var stockErr *storefront.StockError
			switch {
			case err == nil:
			case errors.As(err, &stockErr):
				fmt.Fprintln(w, "Some items can no longer be ordered:")
				for _, issue := range stockErr.Issues {
					fmt.Fprintln(w, "- "+issue)
				}
				return errors.New("checkout stopped; your cart was kept")
			case errors.Is(err, order.ErrRejected):
				return fmt.Errorf("order rejected: %w", err)
			default:
				return err
			}

			if c.jsonOut {
				return c.printJSON(w, conf)
			}
			_, err = fmt.Fprintf(w, "%s Order id: %s\n", conf.Message, conf.OrderID)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&details.Name, "name", "", "customer name")
	f.StringVar(&details.Phone, "phone", "", "contact phone")
	f.StringVar(&details.Address, "address", "", "delivery address")
	f.StringVar(&details.Email, "email", "", "contact email")
	f.StringVar(&ship, "shipping", string(order.ShippingStandard), "shipping method (standard|express)")
	f.StringVar(&pay, "payment", string(order.PaymentCOD), "payment method (cod|credit_card_mock)")
	f.StringVar(&opts.Notes, "notes", "", "notes for the order")
	return cmd
}

func newOrdersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List orders placed by the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := c.app.OrderHistory(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if c.jsonOut {
				return c.printJSON(w, orders)
			}
			if len(orders) == 0 {
				_, err := fmt.Fprintln(w, "No orders yet.")
				return err
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPLACED\tITEMS\tTOTAL\tSTATUS")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), len(o.Items), o.TotalAmount.StringFixed(2), o.Status)
			}
			return tw.Flush()
		},
	}
}
