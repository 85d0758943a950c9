package cart

import "github.com/shopspring/decimal"

// Summary is the derived view of a cart. It is computed from the lines on
// every call and never stored.
type Summary struct {
	Lines      int             `json:"lines"`
	ItemCount  int             `json:"item_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Empty      bool            `json:"empty"`
}

func Summarize(lines []Line) Summary {
	return Summary{
		Lines:      len(lines),
		ItemCount:  ItemCount(lines),
		TotalPrice: TotalPrice(lines),
		Empty:      len(lines) == 0,
	}
}

// ItemCount sums quantities across lines.
func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice sums price*quantity; a line without a price counts as 0.
func TotalPrice(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.Price == nil {
			continue
		}
		total = total.Add(decimal.NewFromFloat(*l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (m *Manager) Summary() Summary { return Summarize(m.Items()) }

func (m *Manager) LineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

func (m *Manager) ItemCount() int { return ItemCount(m.Items()) }

func (m *Manager) TotalPrice() decimal.Decimal { return TotalPrice(m.Items()) }

func (m *Manager) IsEmpty() bool { return m.LineCount() == 0 }
