package room

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/scrumpo/scrumpo/internal/deck"
	"github.com/scrumpo/scrumpo/internal/protocol"
)

// reconcilePresence rebuilds the roster from a full presence snapshot. The
// snapshot replaces all previous state; stale entries for disconnected
// participants drop out because the relay omits them. Replaying the same
// snapshot is idempotent: the roster comes out identical and the deck/phase
// side effects are no-ops once state already matches.
func (e *Engine) reconcilePresence(snap protocol.Snapshot) {
	next := make(map[string]Participant, len(snap))
	anyRevealed := false
	var discovered *deck.Deck

	for userID := range snap {
		m, ok := snap.Last(userID)
		if !ok {
			continue
		}

		phase := protocol.NormalizePhase(m.Phase)
		if phase == protocol.PhaseRevealed {
			anyRevealed = true
		}

		deckValues := deck.NormalizeCards(m.DeckValues)

		// First record carrying a non-empty deck becomes this pass's
		// proposal. Map iteration makes the order among concurrent
		// candidates arbitrary; which one wins the room is a known race
		// (last writer's deck wins across passes).
		if discovered == nil && len(deckValues) > 0 {
			d := candidateDeck(m, deckValues)
			discovered = &d
		}

		// A record's value counts only if its own deck (or, lacking one,
		// the locally active deck) contains it. The active-set check
		// happens again at display resolution.
		var value *string
		if m.Value != nil {
			base := deckValues
			if len(base) == 0 {
				base = e.deck.Cards
			}
			if slices.Contains(base, *m.Value) {
				v := *m.Value
				value = &v
			}
		}

		next[userID] = Participant{
			UserID:   userID,
			Name:     m.Name,
			HasVoted: m.HasVoted,
			Value:    value,
			Phase:    phase,
		}
	}
	e.roster = next

	if discovered != nil && !deck.Equal(*discovered, e.deck) {
		log.Info().
			Str("room_id", e.roomID).
			Str("deck_id", discovered.ID).
			Msg("adopting deck discovered in presence")
		e.setActiveDeck(*discovered)
		e.persistRoomDeck(e.deck)
		// Re-publish so the adopted deck propagates to everyone else.
		e.track()
	}

	// Presence is the convergence mechanism for late joiners: one revealer
	// is enough to consider the room revealed. The reverse direction is
	// reserved for the clear broadcast, so a derived hidden phase never
	// downgrades a revealed room.
	if anyRevealed {
		e.toRevealed()
	}
	e.notify()
}

// candidateDeck shapes a presence record's deck fields into a usable deck.
func candidateDeck(m protocol.PresenceRecord, cards []string) deck.Deck {
	id := m.DeckID
	if id == "" {
		if m.DeckName == "Custom" {
			id = deck.CustomID
		} else {
			id = deck.Builtin[0].ID
		}
	}
	name := m.DeckName
	if name == "" {
		if id == deck.CustomID {
			name = "Custom"
		} else if d, ok := deck.FindBuiltin(id); ok {
			name = d.Name
		} else {
			name = "Deck"
		}
	}
	return deck.Enforce(deck.Deck{ID: id, Name: name, Cards: cards})
}

// setActiveDeck swaps in a new active deck and re-validates every cached
// vote against the new membership. Runs whenever the authoritative deck for
// the room changes, local or discovered.
func (e *Engine) setActiveDeck(d deck.Deck) {
	next := deck.Enforce(d)
	e.deck = next
	e.allowed = deck.NewSet(next.Cards)

	if e.myVote != nil && !e.allowed.Contains(*e.myVote) {
		e.myVote = nil
	}
	for id, v := range e.votes {
		if !e.allowed.Contains(v) {
			delete(e.votes, id)
		}
	}
}

// resolveDeckForRoom picks the deck for entering a room: the staged
// room-creation deck wins first entry, then the deck previously agreed for
// this room, then the currently active deck, then the default.
func (e *Engine) resolveDeckForRoom() deck.Deck {
	if e.pending != nil && e.pending.roomID == e.roomID {
		d := deck.Enforce(e.pending.deck)
		e.pending = nil
		e.persistRoomDeck(d)
		return d
	}
	if d, ok := e.store.RoomDeck(e.ctx, e.roomID); ok && deck.Usable(d) {
		return deck.Enforce(d)
	}
	if deck.Usable(e.deck) {
		return deck.Enforce(e.deck)
	}
	return deck.Default()
}

func (e *Engine) persistRoomDeck(d deck.Deck) {
	if err := e.store.SaveRoomDeck(e.ctx, e.roomID, d); err != nil {
		log.Warn().Err(err).Str("room_id", e.roomID).Msg("room deck persist failed")
	}
}
