package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"pos-promotion-services/internal/http/handlers"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const promotionUpdatesChannel = "promotion_updates"

type promotionBoard struct {
	db       *pgxpool.Pool
	source   BoardSource
	logger   *zap.Logger
	interval time.Duration

	mu   sync.RWMutex
	subs map[int64]map[*wsRealtimeClient]struct{}
	last map[int64]string
}

func newPromotionBoard(db *pgxpool.Pool, source BoardSource, logger *zap.Logger, interval time.Duration) *promotionBoard {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &promotionBoard{
		db:       db,
		source:   source,
		logger:   logger,
		interval: interval,
		subs:     make(map[int64]map[*wsRealtimeClient]struct{}),
		last:     make(map[int64]string),
	}
}

func (b *promotionBoard) subscribe(locationID int64, client *wsRealtimeClient) (unsubscribe func()) {
	b.mu.Lock()
	if b.subs[locationID] == nil {
		b.subs[locationID] = make(map[*wsRealtimeClient]struct{})
	}
	b.subs[locationID][client] = struct{}{}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.removeLocked(locationID, client)
		b.mu.Unlock()
	}
}

func (b *promotionBoard) removeLocked(locationID int64, client *wsRealtimeClient) {
	clients := b.subs[locationID]
	delete(clients, client)
	if len(clients) == 0 {
		delete(b.subs, locationID)
		delete(b.last, locationID)
	}
}

func (b *promotionBoard) locations() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]int64, 0, len(b.subs))
	for id := range b.subs {
		out = append(out, id)
	}
	return out
}

type boardMessage struct {
	Type       string                   `json:"type"`
	LocationID int64                    `json:"locationId"`
	Data       []handlers.PromotionView `json:"data"`
	SentAt     time.Time                `json:"sentAt"`
}

func (b *promotionBoard) load(ctx context.Context, locationID int64) (boardMessage, string, error) {
	list, err := b.source.ActivePromotions(ctx, locationID)
	if err != nil {
		return boardMessage{}, "", err
	}
	views := handlers.PromotionViews(list)
	fingerprint, err := json.Marshal(views)
	if err != nil {
		return boardMessage{}, "", err
	}
	msg := boardMessage{Type: "promotions.state", LocationID: locationID, Data: views, SentAt: time.Now().UTC()}
	return msg, string(fingerprint), nil
}

func (b *promotionBoard) sendState(ctx context.Context, locationID int64, client *wsRealtimeClient) error {
	msg, fingerprint, err := b.load(ctx, locationID)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.last[locationID] = fingerprint
	b.mu.Unlock()
	return client.writeJSON(msg)
}

// changed records fingerprint and reports whether it differs from the last
// state pushed for the location.
func (b *promotionBoard) changed(locationID int64, fingerprint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, watched := b.subs[locationID]; !watched {
		return false
	}
	if b.last[locationID] == fingerprint {
		return false
	}
	b.last[locationID] = fingerprint
	return true
}

// refresh reloads a location and broadcasts only when the board changed.
func (b *promotionBoard) refresh(ctx context.Context, locationID int64) {
	msg, fingerprint, err := b.load(ctx, locationID)
	if err != nil {
		b.logger.Warn("promotion board refresh failed", zap.Int64("locationId", locationID), zap.Error(err))
		return
	}
	if !b.changed(locationID, fingerprint) {
		return
	}
	b.broadcast(locationID, msg)
}

func (b *promotionBoard) broadcast(locationID int64, message any) {
	b.mu.RLock()
	clientsMap := b.subs[locationID]
	clients := make([]*wsRealtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			b.mu.Lock()
			b.removeLocked(locationID, c)
			b.mu.Unlock()
		}
	}
}

func (b *promotionBoard) run(ctx context.Context) {
	if b.db != nil {
		go b.listenLoop(ctx)
	}
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, locationID := range b.locations() {
				b.refresh(ctx, locationID)
			}
		}
	}
}

// listenLoop refreshes a location as soon as its promotions change in the
// database, ahead of the next poll.
func (b *promotionBoard) listenLoop(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := b.db.Acquire(ctx)
		if err != nil {
			b.logger.Warn("promotion LISTEN acquire failed", zap.Error(err))
			sleepContext(ctx, backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		if _, err = conn.Exec(ctx, "listen "+promotionUpdatesChannel); err != nil {
			releaseListener(poolListenConn{conn})
			b.logger.Warn("promotion LISTEN failed", zap.Error(err))
			sleepContext(ctx, backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			locationID, parseErr := parseInt64(strings.TrimSpace(n.Payload))
			if parseErr != nil {
				continue
			}
			b.source.Invalidate(locationID)
			b.refresh(ctx, locationID)
		}

		releaseListener(poolListenConn{conn})
		sleepContext(ctx, backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
	Destroy(ctx context.Context)
}

type poolListenConn struct {
	*pgxpool.Conn
}

func (c poolListenConn) Destroy(ctx context.Context) {
	_ = c.Hijack().Close(ctx)
}

// releaseListener returns conn to the pool without its LISTEN registrations.
// A connection that cannot unlisten is closed instead.
func releaseListener(conn listenConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "unlisten *"); err != nil {
		conn.Destroy(ctx)
		return
	}
	conn.Release()
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
