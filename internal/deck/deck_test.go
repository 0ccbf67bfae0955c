package deck

import "testing"

func TestEnforceUnusableFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		in   Deck
	}{
		{"nil cards", Deck{ID: "x", Name: "X"}},
		{"empty cards", Deck{ID: "x", Name: "X", Cards: []string{}}},
		{"single card", Deck{ID: "x", Name: "X", Cards: []string{"1"}}},
		{"whitespace only", Deck{ID: "x", Name: "X", Cards: []string{"  ", "\t", ""}}},
		{"one usable after trim", Deck{ID: "x", Name: "X", Cards: []string{" 1 ", "  "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Enforce(tt.in)
			if !Equal(got, Builtin[0]) {
				t.Errorf("Enforce(%v) = %v, want default deck %v", tt.in, got, Builtin[0])
			}
		})
	}
}

func TestEnforcePreservesUsableDecks(t *testing.T) {
	in := Deck{ID: "my-deck", Name: "Mine", Cards: []string{" 1 ", "2", "", "3 "}}
	got := Enforce(in)

	if got.ID != "my-deck" || got.Name != "Mine" {
		t.Errorf("Enforce changed identity: got id=%q name=%q", got.ID, got.Name)
	}
	want := []string{"1", "2", "3"}
	if len(got.Cards) != len(want) {
		t.Fatalf("Enforce cards = %v, want %v", got.Cards, want)
	}
	for i := range want {
		if got.Cards[i] != want[i] {
			t.Errorf("Enforce cards = %v, want %v", got.Cards, want)
			break
		}
	}
}

func TestEnforceBackfillsEmptyIdentity(t *testing.T) {
	got := Enforce(Deck{Cards: []string{"1", "2"}})
	if got.ID != Builtin[0].ID || got.Name != Builtin[0].Name {
		t.Errorf("got id=%q name=%q, want default identity", got.ID, got.Name)
	}
	if len(got.Cards) != 2 {
		t.Errorf("cards should be preserved, got %v", got.Cards)
	}
}

func TestEqual(t *testing.T) {
	a := Deck{ID: "a", Name: "A", Cards: []string{"1", "2"}}

	tests := []struct {
		name string
		x, y Deck
		want bool
	}{
		{"reflexive", a, a, true},
		{"same cards different name", a, Deck{ID: "a", Name: "Other", Cards: []string{"1", "2"}}, true},
		{"different id", a, Deck{ID: "b", Name: "A", Cards: []string{"1", "2"}}, false},
		{"different order", a, Deck{ID: "a", Name: "A", Cards: []string{"2", "1"}}, false},
		{"different length", a, Deck{ID: "a", Name: "A", Cards: []string{"1"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.x, tt.y); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
			if got := Equal(tt.y, tt.x); got != tt.want {
				t.Errorf("Equal (swapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetContains(t *testing.T) {
	s := NewSet([]string{"1", "2", "3"})
	if !s.Contains("2") {
		t.Error("expected 2 to be a member")
	}
	if s.Contains("5") {
		t.Error("5 is not in the deck")
	}
	if s.Contains("") {
		t.Error("empty value is never a member")
	}
}

func TestFindBuiltinReturnsCopies(t *testing.T) {
	d, ok := FindBuiltin("scrum-fibonacci")
	if !ok {
		t.Fatal("scrum-fibonacci should exist")
	}
	d.Cards[0] = "mutated"
	again, _ := FindBuiltin("scrum-fibonacci")
	if again.Cards[0] == "mutated" {
		t.Error("FindBuiltin leaked a reference to the catalog")
	}

	if _, ok := FindBuiltin("no-such-deck"); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestDefaultIsUsable(t *testing.T) {
	if !Usable(Default()) {
		t.Fatal("default deck must always be usable")
	}
}
