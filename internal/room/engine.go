package room

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/scrumpo/scrumpo/internal/deck"
	"github.com/scrumpo/scrumpo/internal/identity"
	"github.com/scrumpo/scrumpo/internal/protocol"
	"github.com/scrumpo/scrumpo/internal/relay"
)

// Engine coordinates one room membership. Construct with New, register
// observers, then call Run; user actions go through SelectCard/Reveal/Clear/
// Leave, which hand commands to the run loop.
type Engine struct {
	cfg     Config
	session *identity.Session
	store   DeckStore
	relay   relay.Relay
	clock   clockwork.Clock
	coll    *collate.Collator

	observers []Observer
	cmds      chan command

	// Everything below is owned by the run loop.
	ctx            context.Context
	ch             relay.Channel
	roomID         string
	phase          protocol.Phase
	deck           deck.Deck
	allowed        deck.Set
	myVote         *string
	votes          map[string]string
	roster         map[string]Participant
	celebrated     bool
	connected      bool
	pending        *pendingDeck
	consensusTimer clockwork.Timer
}

// pendingDeck is a deck staged at room-creation time for one exact room id,
// consumed on first entry so the creator's choice wins.
type pendingDeck struct {
	roomID string
	deck   deck.Deck
}

// New creates an engine for one room.
func New(cfg Config, sess *identity.Session, st DeckStore, rel relay.Relay, roomID string) *Engine {
	return &Engine{
		cfg:     cfg,
		session: sess,
		store:   st,
		relay:   rel,
		clock:   clockwork.NewRealClock(),
		coll:    collate.New(language.Und),
		cmds:    make(chan command),
		roomID:  roomID,
		phase:   protocol.PhaseHidden,
		votes:   make(map[string]string),
		roster:  make(map[string]Participant),
	}
}

// AddObserver registers a rendering-layer observer. Not safe to call after
// Run has started.
func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// StageRoomDeck stages a deck for the next entry into roomID. Call before Run.
func (e *Engine) StageRoomDeck(roomID string, d deck.Deck) {
	e.pending = &pendingDeck{roomID: roomID, deck: d}
}

// Run joins the room and processes events until ctx is cancelled or Leave is
// called. All state mutation happens here, run-to-completion per event.
func (e *Engine) Run(ctx context.Context) error {
	ch, err := e.relay.Join(ctx, e.roomID)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	e.ctx = ctx
	e.ch = ch
	e.connected = true

	e.resetForEntry()
	e.setActiveDeck(e.resolveDeckForRoom())
	e.track()
	e.notify()

	for {
		var consensusC <-chan time.Time
		if e.consensusTimer != nil {
			consensusC = e.consensusTimer.Chan()
		}

		select {
		case <-ctx.Done():
			_ = ch.Leave()
			return nil

		case snap, ok := <-ch.Presence():
			if !ok {
				continue
			}
			e.reconcilePresence(snap)

		case env, ok := <-ch.Events():
			if !ok {
				continue
			}
			e.handleBroadcast(env)

		case st, ok := <-ch.Status():
			if !ok {
				continue
			}
			e.setConnected(st)

		case <-consensusC:
			e.consensusTimer = nil
			e.checkConsensus()

		case cmd := <-e.cmds:
			if e.handleCommand(cmd) {
				_ = ch.Leave()
				return nil
			}
		}
	}
}

// SelectCard casts (or changes) the local vote. Casting never changes phase;
// while revealed the value is additionally broadcast for visibility.
func (e *Engine) SelectCard(ctx context.Context, value string) error {
	return e.do(ctx, command{kind: cmdSelectCard, value: value})
}

// Reveal asks the room to uncover all votes. Rejected while disconnected.
func (e *Engine) Reveal(ctx context.Context) error {
	return e.do(ctx, command{kind: cmdReveal})
}

// Clear asks the room to start a fresh hidden cycle. Rejected while
// disconnected.
func (e *Engine) Clear(ctx context.Context) error {
	return e.do(ctx, command{kind: cmdClear})
}

// Leave exits the room and stops Run.
func (e *Engine) Leave(ctx context.Context) error {
	return e.do(ctx, command{kind: cmdLeave})
}

func (e *Engine) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case e.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleCommand runs a local user action. Returns true when the engine should
// leave the room.
func (e *Engine) handleCommand(cmd command) bool {
	switch cmd.kind {
	case cmdSelectCard:
		if !e.allowed.Contains(cmd.value) {
			cmd.reply <- fmt.Errorf("%w: %q", ErrCardNotInDeck, cmd.value)
			return false
		}
		v := cmd.value
		e.myVote = &v
		e.track()
		if e.phase == protocol.PhaseRevealed {
			e.broadcastVote(v)
		}
		e.notify()
		cmd.reply <- nil

	case cmdReveal:
		if !e.connected {
			cmd.reply <- relay.ErrNotConnected
			return false
		}
		// Phase flips when the broadcast comes back, same as for everyone
		// else in the room.
		e.sendBroadcast(protocol.NewReveal(e.session.ID))
		cmd.reply <- nil

	case cmdClear:
		if !e.connected {
			cmd.reply <- relay.ErrNotConnected
			return false
		}
		e.sendBroadcast(protocol.NewClear(e.session.ID))
		cmd.reply <- nil

	case cmdLeave:
		cmd.reply <- nil
		return true
	}
	return false
}

// resetForEntry wipes per-room session state on entering a room.
func (e *Engine) resetForEntry() {
	e.phase = protocol.PhaseHidden
	e.myVote = nil
	e.votes = make(map[string]string)
	e.roster = make(map[string]Participant)
	e.celebrated = false
	e.stopConsensusTimer()
}

func (e *Engine) setConnected(st relay.Status) {
	connected := st == relay.StatusConnected
	if connected == e.connected {
		return
	}
	e.connected = connected
	if connected {
		// Re-announce presence after a reconnect; the relay may have
		// expired the old record.
		e.track()
	}
	e.notify()
}

// track publishes the current local presence record. Best effort: failures
// are logged and never retried, and local state is not rolled back.
func (e *Engine) track() {
	if e.ch == nil {
		return
	}
	if err := e.ch.Track(e.presenceRecord()); err != nil {
		log.Debug().Err(err).Str("room_id", e.roomID).Msg("presence publish failed")
	}
}

// presenceRecord derives the published record from local state. The vote
// value rides along only while revealed, so late joiners can see it; while
// hidden only the has-voted marker is shared.
func (e *Engine) presenceRecord() protocol.PresenceRecord {
	var value *string
	if e.phase == protocol.PhaseRevealed && e.myVote != nil {
		v := *e.myVote
		value = &v
	}
	cards := make([]string, len(e.deck.Cards))
	copy(cards, e.deck.Cards)
	return protocol.PresenceRecord{
		UserID:     e.session.ID,
		Name:       e.session.Name,
		HasVoted:   e.myVote != nil,
		Phase:      e.phase,
		Value:      value,
		DeckID:     e.deck.ID,
		DeckName:   e.deck.Name,
		DeckValues: cards,
	}
}

func (e *Engine) broadcastVote(v string) {
	if !e.allowed.Contains(v) {
		return
	}
	e.sendBroadcast(protocol.NewUserVote(e.session.ID, v))
}

func (e *Engine) sendBroadcast(env protocol.Envelope) {
	if e.ch == nil {
		return
	}
	if err := e.ch.Broadcast(env); err != nil {
		log.Debug().Err(err).Str("event", string(env.Type)).Msg("broadcast publish failed")
	}
}

// notify hands an immutable view to every observer.
func (e *Engine) notify() {
	v := e.view()
	for _, o := range e.observers {
		o.RoomUpdated(v)
	}
}

func (e *Engine) view() View {
	parts := make([]ParticipantView, 0, len(e.roster))
	for id, p := range e.roster {
		pv := ParticipantView{UserID: id, Name: p.Name, HasVoted: p.HasVoted}
		if e.phase == protocol.PhaseRevealed {
			pv.Value = e.displayValue(id, p)
		}
		parts = append(parts, pv)
	}
	sort.Slice(parts, func(i, j int) bool {
		if c := e.coll.CompareString(parts[i].Name, parts[j].Name); c != 0 {
			return c < 0
		}
		return parts[i].UserID < parts[j].UserID
	})

	var myVote *string
	if e.myVote != nil {
		v := *e.myVote
		myVote = &v
	}
	return View{
		RoomID:       e.roomID,
		Phase:        e.phase,
		Deck:         e.deck.Clone(),
		MyID:         e.session.ID,
		MyName:       e.session.Name,
		MyVote:       myVote,
		Connected:    e.connected,
		Celebrated:   e.celebrated,
		Participants: parts,
	}
}
