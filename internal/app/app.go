// Package app wires the client together: configuration, logging, the local
// store, the relay implementation and per-room engines.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scrumpo/scrumpo/internal/deck"
	"github.com/scrumpo/scrumpo/internal/identity"
	"github.com/scrumpo/scrumpo/internal/relay"
	"github.com/scrumpo/scrumpo/internal/room"
	"github.com/scrumpo/scrumpo/internal/store"
)

// App owns the shared process-level dependencies.
type App struct {
	cfg   Config
	Store *store.Store
	Relay relay.Relay
}

// New opens the store and constructs the configured relay.
func New(cfg Config) (*App, error) {
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rel, err := buildRelay(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &App{cfg: cfg, Store: st, Relay: rel}, nil
}

// Close releases process-level resources.
func (a *App) Close() error {
	return a.Store.Close()
}

func buildRelay(cfg Config) (relay.Relay, error) {
	switch cfg.Relay.Kind {
	case RelayNATS:
		rc := relay.DefaultNATSConfig()
		rc.URL = cfg.Relay.NATS.URL
		rc.PresenceTTL = cfg.presenceTTL()
		rc.HeartbeatInterval = cfg.heartbeat()
		return relay.NewNATSRelay(rc), nil
	case RelayWS:
		return relay.NewWSRelay(relay.DefaultWSConfig(cfg.Relay.WS.URL)), nil
	default:
		return nil, fmt.Errorf("unknown relay kind %q", cfg.Relay.Kind)
	}
}

// SetupLogging configures the global logger for terminal use.
func SetupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// ResolveSession builds the participant identity for this run. An explicit
// name wins; otherwise the last-used name is reused. The resolved name is
// validated and remembered for the next run.
func (a *App) ResolveSession(ctx context.Context, name string) (*identity.Session, error) {
	if name == "" {
		if stored, ok := a.Store.LastName(ctx); ok {
			name = stored
		}
	}
	name, err := identity.ValidateName(name)
	if err != nil {
		return nil, fmt.Errorf("resolve display name: %w", err)
	}
	if err := a.Store.SetLastName(ctx, name); err != nil {
		log.Warn().Err(err).Msg("could not remember display name")
	}

	sess := identity.NewSession()
	sess.Name = name
	return sess, nil
}

// ResolveCreateDeck picks the deck for a new room from an explicit deck id
// ("custom" selects the user-defined deck), falling back to the id used on the
// previous creation, then to the default. The choice is remembered.
func (a *App) ResolveCreateDeck(ctx context.Context, deckID string) (deck.Deck, error) {
	if deckID == "" {
		if last, ok := a.Store.LastDeckID(ctx); ok {
			deckID = last
		}
	}

	var d deck.Deck
	switch {
	case deckID == deck.CustomID:
		custom, ok := a.Store.CustomDeck(ctx)
		if !ok {
			return deck.Deck{}, fmt.Errorf("no custom deck is saved; run decks set-custom first")
		}
		d = custom
	case deckID == "":
		d = deck.Default()
	default:
		builtin, ok := deck.FindBuiltin(deckID)
		if !ok {
			return deck.Deck{}, fmt.Errorf("unknown deck id %q", deckID)
		}
		d = builtin
	}

	d = deck.Enforce(d)
	if err := a.Store.SetLastDeckID(ctx, d.ID); err != nil {
		log.Warn().Err(err).Msg("could not remember deck choice")
	}
	return d, nil
}

// CreateRoom mints a room id, stages the chosen deck for first entry and
// returns the engine ready to Run.
func (a *App) CreateRoom(sess *identity.Session, d deck.Deck) (*room.Engine, string) {
	roomID := identity.NewRoomID()
	eng := room.New(room.DefaultConfig(), sess, a.Store, a.Relay, roomID)
	eng.StageRoomDeck(roomID, d)
	return eng, roomID
}

// JoinRoom validates the room id and returns the engine ready to Run.
func (a *App) JoinRoom(sess *identity.Session, rawRoomID string) (*room.Engine, string, error) {
	roomID, err := identity.ParseRoomID(rawRoomID)
	if err != nil {
		return nil, "", fmt.Errorf("join room: %w", err)
	}
	return room.New(room.DefaultConfig(), sess, a.Store, a.Relay, roomID), roomID, nil
}
