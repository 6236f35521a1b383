package domain

// CartLine is a single product selection in the cart. Price is in cents.
type CartLine struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Price    int64    `json:"price"`
	Images   []string `json:"images"`
	Quantity int      `json:"quantity"`
	Color    string   `json:"color"`
	Size     string   `json:"size"`
}

// LineTotal returns price times quantity in cents.
func (l CartLine) LineTotal() int64 {
	return l.Price * int64(l.Quantity)
}

// Clone returns a copy of the line that shares no memory with l.
func (l CartLine) Clone() CartLine {
	if l.Images != nil {
		l.Images = append([]string(nil), l.Images...)
	}
	return l
}

// Ledger is the ordered collection of cart lines for one session.
// Lines are unique by ID. A Ledger is not safe for concurrent use; the
// checkout engine serialises access to it.
type Ledger struct {
	lines []CartLine
}

// NewLedger creates a ledger holding copies of the given lines. Later lines
// replace earlier ones with the same ID.
func NewLedger(lines ...CartLine) *Ledger {
	l := &Ledger{}
	for _, line := range lines {
		l.Add(line)
	}
	return l
}

func (l *Ledger) indexOf(id string) int {
	for i := range l.lines {
		if l.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// Add inserts line, or replaces every field of the existing line with the
// same ID. Quantities are not merged. It reports whether a line was replaced.
func (l *Ledger) Add(line CartLine) bool {
	line = line.Clone()
	if i := l.indexOf(line.ID); i >= 0 {
		l.lines[i] = line
		return true
	}
	l.lines = append(l.lines, line)
	return false
}

// IncreaseQty adds one to the quantity of the line with the given ID.
// Unknown IDs are ignored.
func (l *Ledger) IncreaseQty(id string) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.lines[i].Quantity++
	return true
}

// DecreaseQty subtracts one from the quantity of the line with the given ID
// without going below 1. Decrementing a line at quantity 1 leaves it as is.
func (l *Ledger) DecreaseQty(id string) bool {
	i := l.indexOf(id)
	if i < 0 || l.lines[i].Quantity <= 1 {
		return false
	}
	l.lines[i].Quantity--
	return true
}

// Remove deletes the line with the given ID and returns it.
func (l *Ledger) Remove(id string) (CartLine, bool) {
	i := l.indexOf(id)
	if i < 0 {
		return CartLine{}, false
	}
	removed := l.lines[i]
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	return removed, true
}

// Find returns a copy of the line with the given ID.
func (l *Ledger) Find(id string) (CartLine, bool) {
	i := l.indexOf(id)
	if i < 0 {
		return CartLine{}, false
	}
	return l.lines[i].Clone(), true
}

// Subtotal returns the sum of price times quantity over all lines, in cents.
func (l *Ledger) Subtotal() int64 {
	var total int64
	for _, line := range l.lines {
		total += line.LineTotal()
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (l *Ledger) ItemCount() int {
	var count int
	for _, line := range l.lines {
		count += line.Quantity
	}
	return count
}

// Len returns the number of distinct lines.
func (l *Ledger) Len() int {
	return len(l.lines)
}

// IsEmpty reports whether the ledger has no lines.
func (l *Ledger) IsEmpty() bool {
	return len(l.lines) == 0
}

// Lines returns a deep copy of the lines in insertion order.
func (l *Ledger) Lines() []CartLine {
	out := make([]CartLine, len(l.lines))
	for i, line := range l.lines {
		out[i] = line.Clone()
	}
	return out
}

// Clear removes every line.
func (l *Ledger) Clear() {
	l.lines = nil
}
