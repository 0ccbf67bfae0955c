package relay

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/scrumpo/scrumpo/internal/protocol"
)

// WSConfig holds configuration for the websocket-backed relay.
type WSConfig struct {
	// URL is the relay endpoint, e.g. wss://relay.example.com/rooms.
	// The room id is appended as a path segment.
	URL string

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	EventBuffer      int
}

// DefaultWSConfig returns the default websocket relay configuration.
func DefaultWSConfig(endpoint string) WSConfig {
	return WSConfig{
		URL:              endpoint,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		EventBuffer:      64,
	}
}

// wsFrame is the single frame shape both directions use. Type selects which
// field is populated.
type wsFrame struct {
	Type   string                   `json:"type"` // track | broadcast | presence | event
	Record *protocol.PresenceRecord `json:"record,omitempty"`
	State  protocol.Snapshot        `json:"state,omitempty"`
	Event  *protocol.Envelope       `json:"event,omitempty"`
}

// WSRelay implements Relay over a websocket relay endpoint that echoes
// broadcasts to the room (sender included) and pushes full presence snapshots
// whenever membership or metadata changes.
type WSRelay struct {
	cfg WSConfig
}

// NewWSRelay creates a websocket-backed relay.
func NewWSRelay(cfg WSConfig) *WSRelay {
	return &WSRelay{cfg: cfg}
}

// Join dials the relay endpoint for one room.
func (r *WSRelay) Join(ctx context.Context, roomID string) (Channel, error) {
	base, err := url.Parse(r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	target := base.JoinPath(roomID).String()

	ch := &wsChannel{
		cfg:      r.cfg,
		events:   make(chan protocol.Envelope, r.cfg.EventBuffer),
		presence: make(chan protocol.Snapshot, 1),
		status:   make(chan Status, 8),
		done:     make(chan struct{}),
	}
	ch.pushStatus(StatusConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		ch.pushStatus(StatusDisconnected)
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	ch.conn = conn

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.cfg.PongWait))
	})

	ch.wg.Add(2)
	go ch.readLoop()
	go ch.pingLoop()

	ch.pushStatus(StatusConnected)
	return ch, nil
}

type wsChannel struct {
	cfg  WSConfig
	conn *websocket.Conn

	events   chan protocol.Envelope
	presence chan protocol.Snapshot
	status   chan Status

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
	wg      sync.WaitGroup
}

func (c *wsChannel) writeFrame(f wsFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(f)
}

func (c *wsChannel) Track(rec protocol.PresenceRecord) error {
	if err := c.writeFrame(wsFrame{Type: "track", Record: &rec}); err != nil {
		return fmt.Errorf("track presence: %w", err)
	}
	return nil
}

func (c *wsChannel) Broadcast(env protocol.Envelope) error {
	if err := c.writeFrame(wsFrame{Type: "broadcast", Event: &env}); err != nil {
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}

func (c *wsChannel) Presence() <-chan protocol.Snapshot { return c.presence }
func (c *wsChannel) Events() <-chan protocol.Envelope   { return c.events }
func (c *wsChannel) Status() <-chan Status              { return c.status }

func (c *wsChannel) readLoop() {
	defer c.wg.Done()
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		log.Debug().Err(err).Msg("set read deadline failed")
	}

	for {
		var frame wsFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.done:
			default:
				log.Error().Err(err).Msg("relay read failed")
				c.pushStatus(StatusDisconnected)
			}
			return
		}

		switch frame.Type {
		case "presence":
			snap := frame.State
			if snap == nil {
				snap = make(protocol.Snapshot)
			}
			c.pushSnapshot(snap)
		case "event":
			if frame.Event == nil {
				log.Debug().Msg("dropping event frame without payload")
				continue
			}
			select {
			case c.events <- *frame.Event:
			default:
				log.Warn().Msg("event buffer full, dropping broadcast")
			}
		default:
			log.Debug().Str("type", frame.Type).Msg("ignoring unknown relay frame")
		}
	}
}

func (c *wsChannel) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait))
			c.writeMu.Unlock()
			if err != nil {
				log.Debug().Err(err).Msg("relay ping failed")
			}
		}
	}
}

func (c *wsChannel) pushSnapshot(snap protocol.Snapshot) {
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

func (c *wsChannel) pushStatus(s Status) {
	select {
	case c.status <- s:
	default:
		log.Debug().Str("status", string(s)).Msg("status buffer full, dropping update")
	}
}

// Leave closes the socket; the relay drops the presence record server-side
// when the connection goes away.
func (c *wsChannel) Leave() error {
	c.once.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.cfg.WriteWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.writeMu.Unlock()
		_ = c.conn.Close()
		c.wg.Wait()
		c.pushStatus(StatusDisconnected)
	})
	return nil
}
