package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"Storefront/internal/cart"
)

func (c *cli) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outcome prints a cart outcome; a failed one becomes the command error so the
// process exits non-zero.
func (c *cli) outcome(w io.Writer, out cart.Outcome) error {
	if c.jsonOut {
		if err := c.printJSON(w, out); err != nil {
			return err
		}
		if !out.OK {
			return fmt.Errorf("cart: %s", out.Reason)
		}
		return nil
	}

	if !out.OK {
		return errors.New(out.Message)
	}
	_, err := fmt.Fprintln(w, out.Message)
	return err
}
