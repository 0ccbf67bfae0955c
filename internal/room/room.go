// Package room holds the client-side room coordinator: one engine per joined
// room owns all replicated state (roster, phase, votes, active deck) and
// reconciles it from relay presence snapshots and broadcast events. All
// reconciliation runs to completion on the engine's single goroutine; there
// are no ambient singletons and no shared mutable memory.
package room

import (
	"context"
	"errors"
	"time"

	"github.com/scrumpo/scrumpo/internal/deck"
	"github.com/scrumpo/scrumpo/internal/protocol"
)

// ErrCardNotInDeck rejects selecting a card outside the active deck.
var ErrCardNotInDeck = errors.New("card is not in the active deck")

// DeckStore is what the engine needs from local persistence: the deck agreed
// for a room, surviving across entries.
type DeckStore interface {
	RoomDeck(ctx context.Context, roomID string) (deck.Deck, bool)
	SaveRoomDeck(ctx context.Context, roomID string, d deck.Deck) error
}

// Config holds engine tuning knobs.
type Config struct {
	// ConsensusDelay is the debounce between a reveal transition and the
	// first consensus check, giving in-flight vote broadcasts a chance to
	// arrive. It is a debounce, not a correctness guarantee.
	ConsensusDelay time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{ConsensusDelay: 50 * time.Millisecond}
}

// Participant is one roster entry, rebuilt wholesale from the most recent
// presence record. Value has already been checked against the deck carried in
// that same record; the active-deck check happens at display resolution.
type Participant struct {
	UserID   string
	Name     string
	HasVoted bool
	Value    *string
	Phase    protocol.Phase
}

// ParticipantView is a roster entry as the rendering layer sees it. Value is
// the resolved display value: nil while the room is hidden, and nil after
// reveal when no legal value is resolvable for the participant.
type ParticipantView struct {
	UserID   string
	Name     string
	HasVoted bool
	Value    *string
}

// View is an immutable snapshot of room state handed to observers on every
// change.
type View struct {
	RoomID       string
	Phase        protocol.Phase
	Deck         deck.Deck
	MyID         string
	MyName       string
	MyVote       *string
	Connected    bool
	Celebrated   bool
	Participants []ParticipantView
}

// Observer receives state changes and the one-shot consensus side effect.
// Callbacks run on the engine goroutine and must not block.
type Observer interface {
	RoomUpdated(View)

	// ConsensusReached fires at most once per revealed cycle, when every
	// participant who voted resolved to the same value (two or more values
	// required).
	ConsensusReached(value string)
}

type cmdKind int

const (
	cmdSelectCard cmdKind = iota
	cmdReveal
	cmdClear
	cmdLeave
)

type command struct {
	kind  cmdKind
	value string
	reply chan error
}
