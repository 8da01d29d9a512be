package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"outfitswap/internal/middleware"
	"outfitswap/internal/pubsub"
	"outfitswap/internal/studio"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
	feedReadLimit  = 4096

	// feedResyncPeriod bounds how long a client can show a stale processing
	// flag after its subscription dropped the event that changed it.
	feedResyncPeriod = 2 * time.Second
)

type feedMessage struct {
	Type      string    `json:"type"`
	State     stateView `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// feedConn serialises writes; gorilla connections allow one concurrent writer.
type feedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *feedConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *feedConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait))
}

// feedCursor remembers the processing flag a client last received.
type feedCursor struct {
	processing bool
}

func (c *feedCursor) sent(state studio.State) {
	c.processing = state.Processing
}

// resync returns a fresh snapshot when the live processing flag no longer
// matches what the client saw, which happens when a full subscriber buffer
// swallowed a batch_started or batch_finished event.
func (c *feedCursor) resync(live studio.State) (feedMessage, bool) {
	if live.Processing == c.processing {
		return feedMessage{}, false
	}
	c.sent(live)
	return feedMessage{Type: "snapshot", State: newStateView(live), Timestamp: time.Now()}, true
}

// Feed streams the session state over a websocket: one snapshot on connect,
// then one message per state change. Events dropped for a slow client are
// not replayed; a snapshot follows once the processing flag is seen to drift.
func (a *App) Feed(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger().Warn().Err(err).Msg("feed: upgrade failed")
		return
	}
	defer conn.Close()
	fc := &feedConn{conn: conn}

	logger := a.logger().With().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Logger()
	logger.Debug().Msg("feed: client connected")

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	events := a.Studio.Subscribe(ctx)

	// The reader only watches for the client going away.
	go func() {
		defer cancel()
		conn.SetReadLimit(feedReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var cursor feedCursor
	initial := a.Studio.State()
	if err := fc.writeJSON(feedMessage{Type: "snapshot", State: newStateView(initial), Timestamp: time.Now()}); err != nil {
		return
	}
	cursor.sent(initial)

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()
	resync := time.NewTicker(feedResyncPeriod)
	defer resync.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("feed: client disconnected")
			return
		case <-ticker.C:
			if err := fc.ping(); err != nil {
				return
			}
		case <-resync.C:
			msg, stale := cursor.resync(a.Studio.State())
			if !stale {
				continue
			}
			logger.Debug().Bool("processing", msg.State.Processing).Msg("feed: resynced client")
			if err := fc.writeJSON(msg); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(feedWriteWait))
				return
			}
			if err := fc.writeJSON(toFeedMessage(ev)); err != nil {
				logger.Debug().Err(err).Msg("feed: write failed")
				return
			}
			cursor.sent(ev.Payload)
		}
	}
}

func toFeedMessage(ev pubsub.Event[studio.State]) feedMessage {
	return feedMessage{
		Type:      string(ev.Type),
		State:     newStateView(ev.Payload),
		Timestamp: ev.Timestamp,
	}
}
