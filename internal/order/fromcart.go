package order

import (
	"strings"

	"Storefront/internal/cart"
)

// Options are the checkout choices that do not come from the cart.
type Options struct {
	Shipping ShippingMethod
	Payment  PaymentMethod
	Notes    string
}

// FromCart builds an order request from cart lines. Each item is priced at the
// snapshot taken when it was added; a line without a price is sent at 0.
func FromCart(lines []cart.Line, details CustomerDetails, opts Options) Request {
	if opts.Shipping == "" {
		opts.Shipping = ShippingStandard
	}
	if opts.Payment == "" {
		opts.Payment = PaymentCOD
	}

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{
			ProductID:       l.ID,
			Quantity:        l.Quantity,
			PriceAtPurchase: NewAmount(l.UnitPrice()),
		})
	}

	return Request{
		CustomerDetails: CustomerDetails{
			Name:    strings.TrimSpace(details.Name),
			Phone:   strings.TrimSpace(details.Phone),
			Address: strings.TrimSpace(details.Address),
			Email:   strings.ToLower(strings.TrimSpace(details.Email)),
		},
		Items:          items,
		TotalAmount:    Amount{cart.TotalPrice(lines)},
		ShippingMethod: opts.Shipping,
		PaymentMethod:  opts.Payment,
		Notes:          strings.TrimSpace(opts.Notes),
		Status:         StatusPending,
	}
}
