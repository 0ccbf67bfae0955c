// Package protocol defines the wire records exchanged through the relay:
// per-participant presence metadata and the fire-and-forget broadcast events.
// Everything arriving from the relay is validated here before it reaches the
// room reconcilers; malformed data is reported as an error and dropped by the
// caller, never surfaced to the user.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Phase is the room-wide voting state.
type Phase string

const (
	PhaseHidden   Phase = "hidden"
	PhaseRevealed Phase = "revealed"
)

// NormalizePhase maps any declared phase onto the two legal states: a record
// is revealed iff it says exactly "revealed", anything else is hidden.
func NormalizePhase(p Phase) Phase {
	if p == PhaseRevealed {
		return PhaseRevealed
	}
	return PhaseHidden
}

// PresenceRecord is the metadata a client publishes whenever its local vote,
// phase or deck state changes. Value is a pointer so "no vote" and an empty
// string stay distinguishable on the wire.
type PresenceRecord struct {
	UserID     string   `json:"userId"`
	Name       string   `json:"name"`
	HasVoted   bool     `json:"hasVoted"`
	Phase      Phase    `json:"phase"`
	Value      *string  `json:"value"`
	DeckID     string   `json:"deckId"`
	DeckName   string   `json:"deckName"`
	DeckValues []string `json:"deckValues"`
}

// Snapshot is a full-membership presence state: every currently-tracked
// participant mapped to their historical records, most recent last. Each
// snapshot replaces the previous roster wholesale; participants absent from
// the snapshot have disconnected.
type Snapshot map[string][]PresenceRecord

// Last returns the authoritative (most recent) record for one participant.
func (s Snapshot) Last(userID string) (PresenceRecord, bool) {
	metas := s[userID]
	if len(metas) == 0 {
		return PresenceRecord{}, false
	}
	return metas[len(metas)-1], true
}

// EventType tags a broadcast event.
type EventType string

const (
	EventReveal   EventType = "reveal"
	EventClear    EventType = "clear"
	EventUserVote EventType = "user_vote"
)

// Envelope is the base structure for all broadcast events.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RevealPayload uncovers all votes in the room.
type RevealPayload struct {
	By string `json:"by"`
}

// ClearPayload resets the room to a fresh hidden cycle.
type ClearPayload struct {
	By string `json:"by"`
}

// UserVotePayload carries an explicit vote, broadcast for visibility only
// after reveal.
type UserVotePayload struct {
	UserID string `json:"userId"`
	Value  string `json:"value"`
}

// ParsePayload decodes an envelope's payload into the struct matching its
// type tag. Unknown types and undecodable payloads are errors; the caller
// discards the event.
func ParsePayload(env Envelope) (any, error) {
	switch env.Type {
	case EventReveal:
		var p RevealPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode reveal payload: %w", err)
		}
		return p, nil

	case EventClear:
		var p ClearPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode clear payload: %w", err)
		}
		return p, nil

	case EventUserVote:
		var p UserVotePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode user_vote payload: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

func mustEnvelope(t EventType, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		// All payload types marshal unconditionally.
		panic(fmt.Sprintf("marshal %s payload: %v", t, err))
	}
	return Envelope{Type: t, Payload: data}
}

// NewReveal builds a reveal broadcast.
func NewReveal(by string) Envelope {
	return mustEnvelope(EventReveal, RevealPayload{By: by})
}

// NewClear builds a clear broadcast.
func NewClear(by string) Envelope {
	return mustEnvelope(EventClear, ClearPayload{By: by})
}

// NewUserVote builds an explicit vote broadcast.
func NewUserVote(userID, value string) Envelope {
	return mustEnvelope(EventUserVote, UserVotePayload{UserID: userID, Value: value})
}
