package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yugal82/sports-screening-server/internal/util"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// PubSub is satisfied by *redisclient.Client
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) *redis.PubSub
}

// SeatUpdate is pushed to subscribers whenever an event's counter changes
type SeatUpdate struct {
	EventID        string `json:"eventId"`
	AvailableSeats int    `json:"availableSeats"`
}

// Channel returns the pub/sub channel for an event
func Channel(eventID string) string {
	return fmt.Sprintf("seats:%s", eventID)
}

// Broadcaster publishes seat changes. Delivery is best effort.
type Broadcaster struct {
	ps     PubSub
	logger *zap.Logger
}

// NewBroadcaster creates a new seat broadcaster
func NewBroadcaster(ps PubSub) *Broadcaster {
	return &Broadcaster{ps: ps, logger: util.GetLogger()}
}

// SeatsChanged publishes the new counter value for eventID
func (b *Broadcaster) SeatsChanged(ctx context.Context, eventID string, available int) {
	payload, err := json.Marshal(SeatUpdate{EventID: eventID, AvailableSeats: available})
	if err != nil {
		return
	}
	if err := b.ps.Publish(ctx, Channel(eventID), payload); err != nil {
		b.logger.Warn("Failed to broadcast seat change",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

// Streamer serves websocket subscriptions to seat updates
type Streamer struct {
	ps       PubSub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamer creates a new websocket streamer
func NewStreamer(ps PubSub) *Streamer {
	return &Streamer{
		ps: ps,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: util.GetLogger(),
	}
}

// Stream upgrades the request and forwards updates for eventID until the
// client disconnects. initial is sent first so clients never wait for a change.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, eventID string, initial int) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.ps.Subscribe(ctx, Channel(eventID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", Channel(eventID), err)
	}

	s.logger.Debug("Seat stream opened", zap.String("event_id", eventID))
	defer s.logger.Debug("Seat stream closed", zap.String("event_id", eventID))

	if err := write(conn, SeatUpdate{EventID: eventID, AvailableSeats: initial}); err != nil {
		return nil
	}

	done := make(chan struct{})
	go readUntilClosed(conn, done)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	msgs := sub.Channel()
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var update SeatUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				s.logger.Warn("Dropping malformed seat update", zap.Error(err))
				continue
			}
			if err := write(conn, update); err != nil {
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

func write(conn *websocket.Conn, update SeatUpdate) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(update)
}

// readUntilClosed drains client frames so pongs and close frames are handled
func readUntilClosed(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
