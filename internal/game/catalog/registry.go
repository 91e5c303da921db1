package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is an immutable set of cards looked up by name.
type Registry struct {
	cards map[string]*Card
	names []string
}

// NewRegistry validates cards and indexes them. Names are case-insensitive
// and must be unique.
func NewRegistry(cards ...Card) (*Registry, error) {
	r := &Registry{cards: make(map[string]*Card, len(cards))}
	for i := range cards {
		card := cards[i]
		if err := card.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(card.Name)
		if _, dup := r.cards[key]; dup {
			return nil, fmt.Errorf("duplicate card %q", card.Name)
		}
		r.cards[key] = &card
		r.names = append(r.names, card.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the card with the given name.
func (r *Registry) Get(name string) (*Card, bool) {
	card, ok := r.cards[strings.ToLower(name)]
	return card, ok
}

// MustGet returns the named card or panics. Meant for tests and fixed setups.
func (r *Registry) MustGet(name string) *Card {
	card, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("card %q not in catalog", name))
	}
	return card
}

// Names returns every card name in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of cards.
func (r *Registry) Len() int {
	return len(r.names)
}

// Cards returns a copy of every card in name order.
func (r *Registry) Cards() []Card {
	out := make([]Card, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, *r.cards[strings.ToLower(name)])
	}
	return out
}

// Merge builds one registry from several. A card defined twice is an error.
func Merge(registries ...*Registry) (*Registry, error) {
	var all []Card
	for _, r := range registries {
		all = append(all, r.Cards()...)
	}
	return NewRegistry(all...)
}
