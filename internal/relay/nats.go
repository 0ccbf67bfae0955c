package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/scrumpo/scrumpo/internal/protocol"
)

// NATSConfig holds configuration for the NATS-backed relay.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration

	// PresenceTTL bounds how long a crashed client lingers in the roster;
	// each client refreshes its own record every HeartbeatInterval.
	PresenceTTL       time.Duration
	HeartbeatInterval time.Duration

	EventBuffer int
}

// DefaultNATSConfig returns the default NATS relay configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:               nats.DefaultURL,
		MaxReconnects:     10,
		ReconnectWait:     2 * time.Second,
		PresenceTTL:       60 * time.Second,
		HeartbeatInterval: 20 * time.Second,
		EventBuffer:       64,
	}
}

// NATSRelay implements Relay over NATS: broadcasts ride a per-room core
// subject (at-most-once to current subscribers, which matches the lossy
// broadcast contract), presence rides a per-room JetStream key-value bucket
// keyed by participant id.
type NATSRelay struct {
	cfg NATSConfig
}

// NewNATSRelay creates a NATS-backed relay.
func NewNATSRelay(cfg NATSConfig) *NATSRelay {
	return &NATSRelay{cfg: cfg}
}

func roomSubject(roomID string) string {
	return "room." + roomID + ".events"
}

func presenceBucket(roomID string) string {
	return "room-presence-" + roomID
}

// Join connects to the relay and subscribes to one room.
func (r *NATSRelay) Join(ctx context.Context, roomID string) (Channel, error) {
	ch := &natsChannel{
		cfg:      r.cfg,
		roomID:   roomID,
		events:   make(chan protocol.Envelope, r.cfg.EventBuffer),
		presence: make(chan protocol.Snapshot, 1),
		status:   make(chan Status, 8),
	}
	ch.runCtx, ch.runCancel = context.WithCancel(context.Background())

	opts := []nats.Option{
		nats.MaxReconnects(r.cfg.MaxReconnects),
		nats.ReconnectWait(r.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
			ch.pushStatus(StatusDisconnected)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			ch.pushStatus(StatusConnected)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	ch.pushStatus(StatusConnecting)

	nc, err := nats.Connect(r.cfg.URL, opts...)
	if err != nil {
		ch.runCancel()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	ch.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ch.runCancel()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      presenceBucket(roomID),
		Description: "room presence records",
		TTL:         r.cfg.PresenceTTL,
	})
	if err != nil {
		nc.Close()
		ch.runCancel()
		return nil, fmt.Errorf("open presence bucket: %w", err)
	}
	ch.kv = kv

	sub, err := nc.Subscribe(roomSubject(roomID), func(msg *nats.Msg) {
		var env protocol.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Debug().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable broadcast")
			return
		}
		select {
		case ch.events <- env:
		default:
			log.Warn().Str("room_id", roomID).Msg("event buffer full, dropping broadcast")
		}
	})
	if err != nil {
		nc.Close()
		ch.runCancel()
		return nil, fmt.Errorf("subscribe to room subject: %w", err)
	}
	ch.sub = sub

	watcher, err := kv.WatchAll(ch.runCtx)
	if err != nil {
		nc.Close()
		ch.runCancel()
		return nil, fmt.Errorf("watch presence bucket: %w", err)
	}
	ch.watcher = watcher

	ch.wg.Add(2)
	go ch.watchPresence()
	go ch.heartbeat()

	ch.pushStatus(StatusConnected)
	return ch, nil
}

type natsChannel struct {
	cfg    NATSConfig
	roomID string

	nc      *nats.Conn
	kv      jetstream.KeyValue
	sub     *nats.Subscription
	watcher jetstream.KeyWatcher

	events   chan protocol.Envelope
	presence chan protocol.Snapshot
	status   chan Status

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	mu        sync.Mutex
	lastTrack *protocol.PresenceRecord
	left      bool
}

func (c *natsChannel) Track(rec protocol.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal presence record: %w", err)
	}

	c.mu.Lock()
	c.lastTrack = &rec
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.runCtx, 5*time.Second)
	defer cancel()
	if _, err := c.kv.Put(ctx, rec.UserID, data); err != nil {
		return fmt.Errorf("track presence: %w", err)
	}
	return nil
}

func (c *natsChannel) Broadcast(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	if err := c.nc.Publish(roomSubject(c.roomID), data); err != nil {
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}

func (c *natsChannel) Presence() <-chan protocol.Snapshot { return c.presence }
func (c *natsChannel) Events() <-chan protocol.Envelope   { return c.events }
func (c *natsChannel) Status() <-chan Status              { return c.status }

// watchPresence rebuilds a full roster snapshot on every bucket change. The
// initial replay marker (nil entry) also triggers a build so a joiner sees
// the existing roster before anyone changes state.
func (c *natsChannel) watchPresence() {
	defer c.wg.Done()
	for {
		select {
		case <-c.runCtx.Done():
			return
		case _, ok := <-c.watcher.Updates():
			// A nil entry marks the end of the initial value replay; it
			// triggers a build like any other update.
			if !ok {
				return
			}
			snap, err := c.buildSnapshot()
			if err != nil {
				log.Debug().Err(err).Msg("presence snapshot build failed")
				continue
			}
			c.pushSnapshot(snap)
		}
	}
}

// buildSnapshot reads the whole bucket. Undecodable records are skipped;
// presence is rebuilt from scratch on every change, never patched.
func (c *natsChannel) buildSnapshot() (protocol.Snapshot, error) {
	ctx, cancel := context.WithTimeout(c.runCtx, 5*time.Second)
	defer cancel()

	snap := make(protocol.Snapshot)
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return snap, nil
		}
		return nil, fmt.Errorf("list presence keys: %w", err)
	}

	for _, key := range keys {
		entry, err := c.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("read presence key %s: %w", key, err)
		}
		var rec protocol.PresenceRecord
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("skipping undecodable presence record")
			continue
		}
		snap[key] = append(snap[key], rec)
	}
	return snap, nil
}

// pushSnapshot delivers a snapshot, replacing an undelivered older one. Only
// the watcher goroutine sends here, so the drain-then-send is race free.
func (c *natsChannel) pushSnapshot(snap protocol.Snapshot) {
	select {
	case c.presence <- snap:
	default:
		select {
		case <-c.presence:
		default:
		}
		select {
		case c.presence <- snap:
		default:
		}
	}
}

func (c *natsChannel) pushStatus(s Status) {
	select {
	case c.status <- s:
	default:
		log.Debug().Str("status", string(s)).Msg("status buffer full, dropping update")
	}
}

// heartbeat re-publishes the last tracked record so the bucket TTL never
// expires a live participant.
func (c *natsChannel) heartbeat() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			rec := c.lastTrack
			c.mu.Unlock()
			if rec == nil {
				continue
			}
			if err := c.Track(*rec); err != nil {
				log.Debug().Err(err).Msg("presence heartbeat failed")
			}
		}
	}
}

// Leave deletes the local presence record and tears everything down.
func (c *natsChannel) Leave() error {
	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		return nil
	}
	c.left = true
	last := c.lastTrack
	c.mu.Unlock()

	if last != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.kv.Delete(ctx, last.UserID); err != nil {
			log.Debug().Err(err).Msg("presence withdrawal failed")
		}
		cancel()
	}

	c.runCancel()
	c.watcher.Stop()
	if err := c.sub.Unsubscribe(); err != nil {
		log.Debug().Err(err).Msg("unsubscribe failed")
	}
	c.wg.Wait()
	c.nc.Close()
	c.pushStatus(StatusDisconnected)
	return nil
}
