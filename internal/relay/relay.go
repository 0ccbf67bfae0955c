// Package relay abstracts the pub/sub service a room runs on. The relay is
// opaque: it tracks presence (full-roster snapshots, replace-not-patch) and
// carries fire-and-forget broadcasts delivered at most once to currently
// subscribed clients. Nothing is replayed for late joiners — presence metadata
// is the repair mechanism for missed broadcasts.
package relay

import (
	"context"
	"errors"

	"github.com/scrumpo/scrumpo/internal/protocol"
)

// Status is the connection state surfaced to the UI. While not connected,
// reveal/clear controls are disabled; there is no automatic publish retry.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// ErrNotConnected is returned for operations that need a live relay link.
var ErrNotConnected = errors.New("relay is not connected")

// Channel is a joined room. All receive channels are owned by the channel and
// closed on Leave.
type Channel interface {
	// Track publishes the local presence record. Best effort: a failed
	// publish is logged by the caller and never retried.
	Track(rec protocol.PresenceRecord) error

	// Broadcast sends a fire-and-forget event to everyone currently
	// subscribed, including the sender.
	Broadcast(env protocol.Envelope) error

	// Presence delivers full-roster snapshots. A newer snapshot may replace
	// an undelivered older one; each snapshot stands alone.
	Presence() <-chan protocol.Snapshot

	// Events delivers broadcast envelopes in arrival order. The relay gives
	// no cross-client ordering guarantee.
	Events() <-chan protocol.Envelope

	// Status delivers connection state changes.
	Status() <-chan Status

	// Leave withdraws presence and tears the channel down.
	Leave() error
}

// Relay joins rooms.
type Relay interface {
	Join(ctx context.Context, roomID string) (Channel, error)
}
