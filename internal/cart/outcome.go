package cart

import "fmt"

// Reason classifies an Outcome so callers can phrase feedback without parsing
// the message.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonInvalidQuantity   Reason = "invalid_quantity"
	ReasonInvalidProduct    Reason = "invalid_product"
	ReasonNotInCart         Reason = "not_in_cart"
	ReasonStockUnknown      Reason = "stock_unknown"
	ReasonSoldOut           Reason = "sold_out"
	ReasonStockLimit        Reason = "stock_limit"
	ReasonInsufficientStock Reason = "insufficient_stock"
	ReasonCanceled          Reason = "canceled"
)

// Outcome is what every mutating cart operation returns. Expected failures are
// reported here, never as errors.
type Outcome struct {
	OK      bool   `json:"success"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func succeed(msg string) Outcome {
	return Outcome{OK: true, Reason: ReasonOK, Message: msg}
}

func fail(r Reason, msg string) Outcome {
	return Outcome{OK: false, Reason: r, Message: msg}
}

// StockReport is the result of ValidateCartStock.
type StockReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

func label(p Product) string {
	if p.Name != "" {
		return p.Name
	}
	return "product " + string(p.ID)
}

func msgAdded(p Product, qty int) string {
	return fmt.Sprintf("Added %d x %s to your cart.", qty, label(p))
}

func msgQuantityNotPositive() string {
	return "Quantity must be greater than zero."
}

func msgInvalidProduct() string {
	return "This product cannot be added to the cart."
}

func msgQuantityNegative() string {
	return "Quantity cannot be negative."
}

func msgCannotVerify(p Product) string {
	return fmt.Sprintf("Cannot verify stock for %s right now. Please try again.", label(p))
}

func msgSoldOut(p Product) string {
	return fmt.Sprintf("%s is sold out.", label(p))
}

func msgAtLimit(p Product) string {
	return fmt.Sprintf("Your cart already holds all available stock of %s.", label(p))
}

func msgMaxAddable(p Product, n int) string {
	return fmt.Sprintf("Only %d more of %s can be added to your cart.", n, label(p))
}

func msgNotInCart(id ProductID) string {
	return fmt.Sprintf("Product %s is not in your cart.", id)
}

func msgUpdateExceedsStock(p Product, want, stock int) string {
	return fmt.Sprintf("Cannot set %s to %d: only %d in stock.", label(p), want, stock)
}

func msgUpdated(p Product, qty int) string {
	return fmt.Sprintf("Updated %s to %d.", label(p), qty)
}

func msgRemoved(id ProductID) string {
	return fmt.Sprintf("Removed product %s from your cart.", id)
}

func msgCleared() string {
	return "Your cart is now empty."
}

func msgCanceled() string {
	return "The cart update was canceled."
}

func issueUnverifiable(p Product) string {
	return fmt.Sprintf("%s: cannot verify stock.", label(p))
}

func issueSoldOut(p Product) string {
	return fmt.Sprintf("%s is sold out.", label(p))
}

func issueInsufficient(p Product, want, stock int) string {
	return fmt.Sprintf("%s: %d in cart but only %d in stock (short by %d).", label(p), want, stock, want-stock)
}
