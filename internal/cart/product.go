package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProductID is the canonical string form of a product identifier. The backend
// and older stored carts send ids as either JSON numbers or strings; both decode
// to the same ProductID so 1 and "1" compare equal.
type ProductID string

// NormalizeID turns a string or numeric identifier into its canonical form.
func NormalizeID(v any) (ProductID, error) {
	switch t := v.(type) {
	case ProductID:
		return ProductID(strings.TrimSpace(string(t))), nil
	case string:
		return ProductID(strings.TrimSpace(t)), nil
	case int:
		return ProductID(strconv.Itoa(t)), nil
	case int32:
		return ProductID(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return ProductID(strconv.FormatInt(t, 10)), nil
	case uint:
		return ProductID(strconv.FormatUint(uint64(t), 10)), nil
	case uint64:
		return ProductID(strconv.FormatUint(t, 10)), nil
	case float64:
		return idFromFloat(t)
	case json.Number:
		return idFromNumber(t)
	default:
		return "", fmt.Errorf("unsupported product id type %T", v)
	}
}

func idFromNumber(n json.Number) (ProductID, error) {
	if i, err := n.Int64(); err == nil {
		return ProductID(strconv.FormatInt(i, 10)), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("bad numeric product id %q", n.String())
	}
	return idFromFloat(f)
}

func idFromFloat(f float64) (ProductID, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errors.New("non-finite product id")
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return ProductID(strconv.FormatInt(int64(f), 10)), nil
	}
	return ProductID(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func (id ProductID) String() string { return string(id) }

func (id ProductID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return errors.New("product id is null")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}
	norm, err := idFromNumber(json.Number(string(b)))
	if err != nil {
		return err
	}
	*id = norm
	return nil
}

// Product is the catalog view of an item. Price and Stock are optional; any
// other field the backend sends (description, image, category...) is kept in
// Extra and written back unchanged.
type Product struct {
	ID    ProductID
	Name  string
	Price *float64
	Stock *int
	Extra map[string]json.RawMessage
}

const (
	fieldID       = "id"
	fieldName     = "name"
	fieldPrice    = "price"
	fieldStock    = "stock"
	fieldQuantity = "quantity"
)

// UnitPrice returns the price, or 0 when the product carries none.
func (p Product) UnitPrice() float64 {
	if p.Price == nil {
		return 0
	}
	return *p.Price
}

func (p Product) fields() (map[string]any, error) {
	m := make(map[string]any, len(p.Extra)+5)
	for k, v := range p.Extra {
		m[k] = v
	}
	m[fieldID] = p.ID
	m[fieldName] = p.Name
	if p.Price != nil {
		m[fieldPrice] = *p.Price
	}
	if p.Stock != nil {
		m[fieldStock] = *p.Stock
	}
	return m, nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	m, err := p.fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return p.fromRaw(raw)
}

func (p *Product) fromRaw(raw map[string]json.RawMessage) error {
	if raw == nil {
		return errors.New("product is null")
	}
	idRaw, ok := raw[fieldID]
	if !ok {
		return errors.New("product id missing")
	}
	var out Product
	if err := json.Unmarshal(idRaw, &out.ID); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	if out.ID == "" {
		return errors.New("product id empty")
	}
	delete(raw, fieldID)

	if v, ok := raw[fieldName]; ok {
		if err := json.Unmarshal(v, &out.Name); err != nil {
			return fmt.Errorf("product name: %w", err)
		}
		delete(raw, fieldName)
	}
	if v, ok := raw[fieldPrice]; ok {
		if err := json.Unmarshal(v, &out.Price); err != nil {
			return fmt.Errorf("product price: %w", err)
		}
		delete(raw, fieldPrice)
	}
	if v, ok := raw[fieldStock]; ok {
		if err := json.Unmarshal(v, &out.Stock); err != nil {
			return fmt.Errorf("product stock: %w", err)
		}
		delete(raw, fieldStock)
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*p = out
	return nil
}

// Line is one cart entry: the product as it looked when first added, plus the
// quantity the shopper wants.
type Line struct {
	Product
	Quantity int
}

func (l Line) MarshalJSON() ([]byte, error) {
	m, err := l.Product.fields()
	if err != nil {
		return nil, err
	}
	m[fieldQuantity] = l.Quantity
	return json.Marshal(m)
}

func (l *Line) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("cart line is null")
	}
	qRaw, ok := raw[fieldQuantity]
	if !ok {
		return errors.New("cart line quantity missing")
	}
	var q int
	if err := json.Unmarshal(qRaw, &q); err != nil {
		return fmt.Errorf("cart line quantity: %w", err)
	}
	delete(raw, fieldQuantity)

	var p Product
	if err := p.fromRaw(raw); err != nil {
		return err
	}
	*l = Line{Product: p, Quantity: q}
	return nil
}

func cloneLines(in []Line) []Line {
	out := make([]Line, len(in))
	copy(out, in)
	return out
}

func indexOf(lines []Line, id ProductID) int {
	for i := range lines {
		if lines[i].ID == id {
			return i
		}
	}
	return -1
}
