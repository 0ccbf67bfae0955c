// Package store is the local persistence layer: last-used deck, the
// user-defined custom deck, per-room resolved decks and the last-used display
// name. Every read degrades to "not found" on absence or corruption — a broken
// row never aborts an action.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/scrumpo/scrumpo/internal/deck"
)

const (
	keyLastDeckID = "last_deck_id"
	keyCustomDeck = "custom_deck"
	keyLastName   = "last_name"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS room_decks (
    room_id TEXT PRIMARY KEY,
    deck TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Store wraps the client's SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and applies the schema. Safe to
// call on an existing database; the schema uses IF NOT EXISTS throughout.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway store, used by tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getSetting(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Debug().Err(err).Str("key", key).Msg("setting read failed, using default")
		}
		return "", false
	}
	return value, true
}

func (s *Store) putSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) deleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// LastDeckID returns the deck id chosen most recently on room creation.
func (s *Store) LastDeckID(ctx context.Context) (string, bool) {
	return s.getSetting(ctx, keyLastDeckID)
}

// SetLastDeckID remembers the deck id for the next room creation form.
func (s *Store) SetLastDeckID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.putSetting(ctx, keyLastDeckID, id)
}

// customDeckRow is the persisted shape of the custom deck. The id is implied:
// a loaded custom deck always carries deck.CustomID.
type customDeckRow struct {
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

// CustomDeck loads the user-defined deck. Returns false when none is stored,
// the row is unparseable, or no usable cards remain after trimming.
func (s *Store) CustomDeck(ctx context.Context) (deck.Deck, bool) {
	raw, ok := s.getSetting(ctx, keyCustomDeck)
	if !ok {
		return deck.Deck{}, false
	}
	var row customDeckRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		log.Debug().Err(err).Msg("custom deck row unparseable, ignoring")
		return deck.Deck{}, false
	}
	cards := deck.NormalizeCards(row.Cards)
	if len(cards) == 0 {
		return deck.Deck{}, false
	}
	name := row.Name
	if name == "" {
		name = "Custom"
	}
	return deck.Deck{ID: deck.CustomID, Name: name, Cards: cards}, true
}

// SaveCustomDeck persists the user-defined deck. A deck with no usable cards
// removes the stored one instead.
func (s *Store) SaveCustomDeck(ctx context.Context, d deck.Deck) error {
	cards := deck.NormalizeCards(d.Cards)
	if len(cards) == 0 {
		return s.deleteSetting(ctx, keyCustomDeck)
	}
	name := d.Name
	if name == "" {
		name = "Custom"
	}
	data, err := json.Marshal(customDeckRow{Name: name, Cards: cards})
	if err != nil {
		return fmt.Errorf("marshal custom deck: %w", err)
	}
	return s.putSetting(ctx, keyCustomDeck, string(data))
}

// RoomDeck loads the deck previously agreed for a room. Returns false when
// none is stored or the row no longer yields a usable deck.
func (s *Store) RoomDeck(ctx context.Context, roomID string) (deck.Deck, bool) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT deck FROM room_decks WHERE room_id = ?`, roomID).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Debug().Err(err).Str("room_id", roomID).Msg("room deck read failed, using default")
		}
		return deck.Deck{}, false
	}
	var d deck.Deck
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		log.Debug().Err(err).Str("room_id", roomID).Msg("room deck row unparseable, ignoring")
		return deck.Deck{}, false
	}
	d.Cards = deck.NormalizeCards(d.Cards)
	if len(d.Cards) == 0 {
		return deck.Deck{}, false
	}
	if d.ID == "" {
		d.ID = deck.CustomID
	}
	if d.Name == "" {
		d.Name = "Custom"
	}
	return d, true
}

// SaveRoomDeck persists the deck agreed for a room so later entries adopt it
// without waiting for a presence round-trip.
func (s *Store) SaveRoomDeck(ctx context.Context, roomID string, d deck.Deck) error {
	if roomID == "" {
		return nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal room deck: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_decks (room_id, deck, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET deck = excluded.deck, updated_at = excluded.updated_at`,
		roomID, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save room deck: %w", err)
	}
	return nil
}

// LastName returns the display name used most recently, to prefill forms and
// skip re-prompting.
func (s *Store) LastName(ctx context.Context) (string, bool) {
	return s.getSetting(ctx, keyLastName)
}

// SetLastName remembers the display name.
func (s *Store) SetLastName(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	return s.putSetting(ctx, keyLastName, name)
}
