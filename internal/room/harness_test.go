package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/scrumpo/scrumpo/internal/deck"
	"github.com/scrumpo/scrumpo/internal/identity"
	"github.com/scrumpo/scrumpo/internal/protocol"
	"github.com/scrumpo/scrumpo/internal/relay"
)

const (
	testRoomID = "a3bb189e-8bf9-4888-9912-ace4e6543002"
	userOne    = "11111111-1111-4111-8111-111111111111"
	userTwo    = "22222222-2222-4222-8222-222222222222"
	userThree  = "33333333-3333-4333-8333-333333333333"
)

func sp(s string) *string { return &s }

func rec(userID, name string, voted bool, phase protocol.Phase, value *string, cards []string) protocol.PresenceRecord {
	return protocol.PresenceRecord{
		UserID:     userID,
		Name:       name,
		HasVoted:   voted,
		Phase:      phase,
		Value:      value,
		DeckValues: cards,
	}
}

func snapOf(recs ...protocol.PresenceRecord) protocol.Snapshot {
	snap := make(protocol.Snapshot)
	for _, r := range recs {
		snap[r.UserID] = append(snap[r.UserID], r)
	}
	return snap
}

// fakeStore is an in-memory DeckStore.
type fakeStore struct {
	mu    sync.Mutex
	decks map[string]deck.Deck
}

func newFakeStore() *fakeStore {
	return &fakeStore{decks: make(map[string]deck.Deck)}
}

func (f *fakeStore) RoomDeck(_ context.Context, roomID string) (deck.Deck, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decks[roomID]
	return d.Clone(), ok
}

func (f *fakeStore) SaveRoomDeck(_ context.Context, roomID string, d deck.Deck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decks[roomID] = d.Clone()
	return nil
}

// fakeChannel is an in-process relay channel. Broadcasts echo back to the
// sender, matching the real relay's self-delivery.
type fakeChannel struct {
	presence chan protocol.Snapshot
	events   chan protocol.Envelope
	status   chan relay.Status

	mu      sync.Mutex
	tracked []protocol.PresenceRecord
	sent    []protocol.Envelope
	left    bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		presence: make(chan protocol.Snapshot, 8),
		events:   make(chan protocol.Envelope, 32),
		status:   make(chan relay.Status, 8),
	}
}

func (c *fakeChannel) Track(r protocol.PresenceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked = append(c.tracked, r)
	return nil
}

func (c *fakeChannel) Broadcast(env protocol.Envelope) error {
	c.mu.Lock()
	c.sent = append(c.sent, env)
	c.mu.Unlock()
	c.events <- env
	return nil
}

func (c *fakeChannel) Presence() <-chan protocol.Snapshot { return c.presence }
func (c *fakeChannel) Events() <-chan protocol.Envelope   { return c.events }
func (c *fakeChannel) Status() <-chan relay.Status        { return c.status }

func (c *fakeChannel) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left = true
	return nil
}

func (c *fakeChannel) trackedRecords() []protocol.PresenceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.PresenceRecord, len(c.tracked))
	copy(out, c.tracked)
	return out
}

func (c *fakeChannel) sentEvents() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeChannel) wasLeft() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left
}

type fakeRelay struct {
	ch *fakeChannel
}

func (r *fakeRelay) Join(_ context.Context, _ string) (relay.Channel, error) {
	return r.ch, nil
}

type recordingObserver struct {
	views     chan View
	consensus chan string
}

func (o *recordingObserver) RoomUpdated(v View)          { o.views <- v }
func (o *recordingObserver) ConsensusReached(val string) { o.consensus <- val }

type harness struct {
	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc
	eng    *Engine
	ch     *fakeChannel
	st     *fakeStore
	clock  *clockwork.FakeClock
	obs    *recordingObserver

	done     chan error
	stopOnce sync.Once
	runErr   error

	// entryView is the first view published after Run joins the room.
	entryView View
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sess := identity.NewSession()
	sess.Name = "Tester"

	ch := newFakeChannel()
	h := &harness{
		t:     t,
		ch:    ch,
		st:    newFakeStore(),
		clock: clockwork.NewFakeClock(),
		obs: &recordingObserver{
			views:     make(chan View, 256),
			consensus: make(chan string, 8),
		},
		done: make(chan error, 1),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.eng = New(DefaultConfig(), sess, h.st, &fakeRelay{ch: ch}, testRoomID)
	h.eng.clock = h.clock
	h.eng.AddObserver(h.obs)
	return h
}

func (h *harness) start() {
	h.t.Helper()
	go func() {
		h.done <- h.eng.Run(h.ctx)
	}()
	h.t.Cleanup(func() { h.stop() })
	h.entryView = h.waitView(func(View) bool { return true }, "initial view")
}

func (h *harness) stop() error {
	h.stopOnce.Do(func() {
		h.cancel()
		select {
		case h.runErr = <-h.done:
		case <-time.After(2 * time.Second):
			h.t.Error("engine did not stop")
		}
	})
	return h.runErr
}

// waitView drains views until one satisfies pred.
func (h *harness) waitView(pred func(View) bool, desc string) View {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-h.obs.views:
			if pred(v) {
				return v
			}
		case <-deadline:
			h.t.Fatalf("timeout waiting for %s", desc)
			return View{}
		}
	}
}

func (h *harness) pushSnap(snap protocol.Snapshot) { h.ch.presence <- snap }
func (h *harness) pushEvent(env protocol.Envelope) { h.ch.events <- env }
func (h *harness) pushStatus(s relay.Status)       { h.ch.status <- s }

// advanceConsensusTimer waits for the deferred check to be armed, then fires
// it.
func (h *harness) advanceConsensusTimer() {
	h.t.Helper()
	h.clock.BlockUntil(1)
	h.clock.Advance(DefaultConfig().ConsensusDelay)
}

func (h *harness) expectConsensus(want string) {
	h.t.Helper()
	select {
	case got := <-h.obs.consensus:
		if got != want {
			h.t.Fatalf("consensus value = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		h.t.Fatal("timeout waiting for consensus")
	}
}

func (h *harness) expectNoConsensus() {
	h.t.Helper()
	select {
	case got := <-h.obs.consensus:
		h.t.Fatalf("unexpected consensus on %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func findParticipant(v View, userID string) (ParticipantView, bool) {
	for _, p := range v.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return ParticipantView{}, false
}
