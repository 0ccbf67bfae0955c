package deck

import "strings"

// CustomID is the reserved id for the user-defined deck.
const CustomID = "custom"

// Deck is an ordered set of permissible estimate card labels. Decks are
// immutable value objects: a new deck replaces the active one wholesale and is
// never mutated in place.
type Deck struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

// Builtin is the built-in deck catalog. The first entry is the default deck
// substituted whenever a candidate deck is unusable.
var Builtin = []Deck{
	{
		ID:    "scrum-fibonacci-mini",
		Name:  "Scrum Fibonacci (mini)",
		Cards: []string{"?", "0", "1", "2", "3", "5", "8"},
	},
	{
		ID:    "scrum-fibonacci",
		Name:  "Scrum Fibonacci",
		Cards: []string{"?", "0", "1", "2", "3", "5", "8", "13", "21", "34", "∞", "☕"},
	},
	{
		ID:    "tshirt-sizes",
		Name:  "T-shirts XS, S, M, L, XL",
		Cards: []string{"XS", "S", "M", "L", "XL", "?"},
	},
	{
		ID:    "tshirt-sizes-extended",
		Name:  "T-shirts XS → XXL",
		Cards: []string{"XS", "S", "M", "L", "XL", "XXL", "?"},
	},
	{
		ID:    "powers-of-two",
		Name:  "Powers of two",
		Cards: []string{"?", "0", "1", "2", "4", "8", "16", "32", "64", "∞", "☕"},
	},
	{
		ID:    "linear-1-10",
		Name:  "Scale 1–10",
		Cards: []string{"?", "0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "∞", "☕"},
	},
}

// Default returns a copy of the default built-in deck.
func Default() Deck {
	return Builtin[0].Clone()
}

// FindBuiltin looks up a built-in deck by id. The second return is false when
// no built-in deck has that id.
func FindBuiltin(id string) (Deck, bool) {
	for _, d := range Builtin {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return Deck{}, false
}

// Clone returns a deep copy of the deck.
func (d Deck) Clone() Deck {
	cards := make([]string, len(d.Cards))
	copy(cards, d.Cards)
	return Deck{ID: d.ID, Name: d.Name, Cards: cards}
}

// NormalizeCards trims every label and drops the ones that end up empty.
// Order is preserved; duplicates are not collapsed.
func NormalizeCards(cards []string) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Usable reports whether the deck has at least two non-empty, trimmed card
// labels. An unusable deck must never become the active deck.
func Usable(d Deck) bool {
	return len(NormalizeCards(d.Cards)) >= 2
}

// Enforce normalizes a candidate deck and is the single gatekeeper against
// operating with fewer than two playable cards: an unusable candidate is
// replaced by the default built-in deck. A usable candidate keeps its id, name
// and card order, with empty id/name backfilled from the default deck.
func Enforce(d Deck) Deck {
	if !Usable(d) {
		return Default()
	}
	out := Deck{ID: d.ID, Name: d.Name, Cards: NormalizeCards(d.Cards)}
	if out.ID == "" {
		out.ID = Builtin[0].ID
	}
	if out.Name == "" {
		out.Name = Builtin[0].Name
	}
	return out
}

// Equal reports structural equality: same id and the same cards in the same
// order. Used to avoid state churn when a remotely discovered deck already
// matches the local one.
func Equal(a, b Deck) bool {
	if a.ID != b.ID || len(a.Cards) != len(b.Cards) {
		return false
	}
	for i := range a.Cards {
		if a.Cards[i] != b.Cards[i] {
			return false
		}
	}
	return true
}

// Set is the membership test derived from a deck's cards. It is the sole
// legality check for vote values: a value outside the set is treated as
// absent, never displayed and never counted toward consensus.
type Set map[string]struct{}

// NewSet builds a membership set from card labels.
func NewSet(cards []string) Set {
	s := make(Set, len(cards))
	for _, c := range cards {
		s[c] = struct{}{}
	}
	return s
}

// Contains reports whether v is a legal card value.
func (s Set) Contains(v string) bool {
	_, ok := s[v]
	return ok
}
