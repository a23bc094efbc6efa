package cart

import (
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"marketplace/internal/domain/cart"
)

// CtxStoreKey is the gin context key holding the visitor's *Store.
const CtxStoreKey = "cart_store"

// MaxQuantity caps a single line.
const MaxQuantity = 999

var (
	ErrInvalidItem      = errors.New("invalid cart item")
	ErrNotInCart        = errors.New("item not in cart")
	ErrQuantityTooLarge = errors.New("quantity too large")
)

type Listener func(items []cart.Item)

// Store is an ordered set of cart items keyed by item id.
type Store struct {
	mu        sync.Mutex
	items     []cart.Item
	index     map[string]int
	listeners map[int]Listener
	order     []int
	nextID    int
}

func NewStore() *Store {
	return &Store{
		index:     map[string]int{},
		listeners: map[int]Listener{},
	}
}

// Add puts qty units of item in the cart. qty <= 0 means one unit.
// Re-adding an id sums quantities and keeps the original position and price.
// A line never exceeds MaxQuantity; an add that would is rejected whole.
func (s *Store) Add(item cart.Item, qty int) error {
	item.ItemID = strings.TrimSpace(item.ItemID)
	if item.ItemID == "" || item.UnitPrice.IsNegative() {
		return ErrInvalidItem
	}
	if qty <= 0 {
		qty = 1
	}
	if qty > MaxQuantity {
		return ErrQuantityTooLarge
	}

	return s.mutate(func() error {
		if i, ok := s.index[item.ItemID]; ok {
			if s.items[i].Quantity > MaxQuantity-qty {
				return ErrQuantityTooLarge
			}
			s.items[i].Quantity += qty
			return nil
		}
		item.Quantity = qty
		s.index[item.ItemID] = len(s.items)
		s.items = append(s.items, item)
		return nil
	})
}

func (s *Store) Remove(itemID string) {
	_ = s.mutate(func() error {
		s.removeLocked(itemID)
		return nil
	})
}

// SetQuantity overwrites the quantity; qty <= 0 removes the item.
func (s *Store) SetQuantity(itemID string, qty int) error {
	if qty > MaxQuantity {
		return ErrQuantityTooLarge
	}
	return s.mutate(func() error {
		i, ok := s.index[itemID]
		if !ok {
			return ErrNotInCart
		}
		if qty <= 0 {
			s.removeLocked(itemID)
			return nil
		}
		s.items[i].Quantity = qty
		return nil
	})
}

func (s *Store) Clear() {
	_ = s.mutate(func() error {
		s.items = nil
		s.index = map[string]int{}
		return nil
	})
}

// Items returns a copy in insertion order.
func (s *Store) Items() []cart.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalOf(s.items)
}

func (s *Store) Snapshot() cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := cart.Cart{Items: s.copyLocked(), Total: totalOf(s.items)}
	for _, it := range s.items {
		out.Count += it.Quantity
	}
	return out
}

// Restore replaces the contents without notifying listeners.
// Entries with bad ids or quantities are dropped, duplicates merged and lines capped at MaxQuantity.
func (s *Store) Restore(items []cart.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = map[string]int{}
	for _, it := range items {
		if it.ItemID == "" || it.Quantity <= 0 {
			continue
		}
		it.Quantity = min(it.Quantity, MaxQuantity)
		if i, ok := s.index[it.ItemID]; ok {
			s.items[i].Quantity = min(s.items[i].Quantity+it.Quantity, MaxQuantity)
			continue
		}
		s.index[it.ItemID] = len(s.items)
		s.items = append(s.items, it)
	}
}

func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// mutate applies fn and notifies listeners unless fn failed.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	items := s.copyLocked()
	ls := make([]Listener, 0, len(s.listeners))
	kept := s.order[:0]
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			ls = append(ls, l)
			kept = append(kept, id)
		}
	}
	s.order = kept
	s.mu.Unlock()

	for _, l := range ls {
		l(items)
	}
	return nil
}

func (s *Store) removeLocked(itemID string) {
	i, ok := s.index[itemID]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, itemID)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ItemID] = j
	}
}

func (s *Store) copyLocked() []cart.Item {
	out := make([]cart.Item, len(s.items))
	copy(out, s.items)
	return out
}

func totalOf(items []cart.Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}
