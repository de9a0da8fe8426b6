package position

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrPositionLimit is returned when opening a position would exceed the book's limit.
var ErrPositionLimit = errors.New("position limit reached")

// Book holds the open positions of one session keyed by symbol.
type Book struct {
	mutex     sync.RWMutex
	perSymbol int
	positions map[string][]*Position
}

// NewBook creates a Book allowing perSymbol concurrent positions per symbol.
// Values below 1 are treated as 1.
func NewBook(perSymbol int) *Book {
	if perSymbol < 1 {
		perSymbol = 1
	}
	return &Book{perSymbol: perSymbol, positions: make(map[string][]*Position)}
}

// Open adds p to the book.
func (b *Book) Open(p *Position) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.positions[p.Symbol]) >= b.perSymbol {
		return fmt.Errorf("%w: %s already has %d open", ErrPositionLimit, p.Symbol, b.perSymbol)
	}
	b.positions[p.Symbol] = append(b.positions[p.Symbol], p)
	return nil
}

// Get returns the oldest open position for symbol.
func (b *Book) Get(symbol string) (*Position, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	ps := b.positions[symbol]
	if len(ps) == 0 {
		return nil, false
	}
	return ps[0], true
}

// Remove drops p from the book.
func (b *Book) Remove(p *Position) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	ps := b.positions[p.Symbol]
	for i, q := range ps {
		if q == p {
			ps = append(ps[:i], ps[i+1:]...)
			if len(ps) == 0 {
				delete(b.positions, p.Symbol)
			} else {
				b.positions[p.Symbol] = ps
			}
			return true
		}
	}
	return false
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	n := 0
	for _, ps := range b.positions {
		n += len(ps)
	}
	return n
}

// All returns the open positions ordered by symbol, then by opening order.
func (b *Book) All() []*Position {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	symbols := make([]string, 0, len(b.positions))
	for s := range b.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	var out []*Position
	for _, s := range symbols {
		out = append(out, b.positions[s]...)
	}
	return out
}

// Snapshots returns copies of every open position.
func (b *Book) Snapshots() []Snapshot {
	all := b.All()
	out := make([]Snapshot, len(all))
	for i, p := range all {
		out[i] = p.Snapshot()
	}
	return out
}
