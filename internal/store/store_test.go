package store

import (
	"context"
	"testing"

	"github.com/scrumpo/scrumpo/internal/deck"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCustomDeckRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	in := deck.Deck{ID: deck.CustomID, Name: "Team deck", Cards: []string{" 1 ", "2", "  ", "XL"}}
	if err := s.SaveCustomDeck(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := s.CustomDeck(ctx)
	if !ok {
		t.Fatal("custom deck should load")
	}
	if got.ID != deck.CustomID {
		t.Errorf("loaded id = %q, want %q", got.ID, deck.CustomID)
	}
	if got.Name != "Team deck" {
		t.Errorf("loaded name = %q", got.Name)
	}
	want := []string{"1", "2", "XL"}
	if len(got.Cards) != len(want) {
		t.Fatalf("cards = %v, want %v (whitespace-only entries dropped)", got.Cards, want)
	}
	for i := range want {
		if got.Cards[i] != want[i] {
			t.Errorf("cards = %v, want %v", got.Cards, want)
			break
		}
	}
}

func TestSaveCustomDeckWithNoCardsRemovesIt(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.SaveCustomDeck(ctx, deck.Deck{Name: "x", Cards: []string{"1", "2"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveCustomDeck(ctx, deck.Deck{Name: "x", Cards: []string{"  "}}); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if _, ok := s.CustomDeck(ctx); ok {
		t.Error("custom deck should be gone after saving an empty one")
	}
}

func TestCustomDeckCorruptRowDegradesToAbsent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.putSetting(ctx, keyCustomDeck, `{"cards": "not-an-array"`); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	if _, ok := s.CustomDeck(ctx); ok {
		t.Error("corrupt custom deck row must read as absent")
	}
}

func TestRoomDeckRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	roomID := "a3bb189e-8bf9-4888-9912-ace4e6543002"

	if _, ok := s.RoomDeck(ctx, roomID); ok {
		t.Fatal("unknown room should have no deck")
	}

	d := deck.Deck{ID: "powers-of-two", Name: "Powers of two", Cards: []string{"1", "2", "4"}}
	if err := s.SaveRoomDeck(ctx, roomID, d); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := s.RoomDeck(ctx, roomID)
	if !ok {
		t.Fatal("room deck should load")
	}
	if !deck.Equal(got, d) {
		t.Errorf("loaded %v, want %v", got, d)
	}

	// Last writer wins per room.
	d2 := deck.Deck{ID: deck.CustomID, Name: "Custom", Cards: []string{"S", "M"}}
	if err := s.SaveRoomDeck(ctx, roomID, d2); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.RoomDeck(ctx, roomID)
	if !deck.Equal(got, d2) {
		t.Errorf("loaded %v, want overwritten deck %v", got, d2)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, ok := s.LastDeckID(ctx); ok {
		t.Error("fresh store has no last deck id")
	}
	if err := s.SetLastDeckID(ctx, "tshirt-sizes"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if id, ok := s.LastDeckID(ctx); !ok || id != "tshirt-sizes" {
		t.Errorf("last deck id = %q, %v", id, ok)
	}

	if err := s.SetLastName(ctx, "Alice"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if name, ok := s.LastName(ctx); !ok || name != "Alice" {
		t.Errorf("last name = %q, %v", name, ok)
	}
}
