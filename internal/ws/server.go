package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"pos-promotion-services/internal/config"
	"pos-promotion-services/internal/promotion"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type BoardSource interface {
	ActivePromotions(ctx context.Context, locationID int64) ([]promotion.Promotion, error)
	Invalidate(locationID int64)
}

// Server pushes the active promotion board of a location to its screens.
type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	board *promotionBoard
}

// New builds the websocket server. db is only used for LISTEN and may be nil.
func New(db *pgxpool.Pool, source BoardSource, logger *zap.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		DB:     db,
		Logger: logger,
		Config: cfg,
		board:  newPromotionBoard(db, source, logger, cfg.WSBoardPollInterval),
	}
}

// Run drives the board poll and LISTEN loops until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.board.run(ctx)
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(value)
}

func (c *wsRealtimeClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (s *Server) PromotionBoardWS(w http.ResponseWriter, r *http.Request) {
	locationID, err := parseInt64(chi.URLParam(r, "locationId"))
	if err != nil || locationID <= 0 {
		http.Error(w, "invalid location", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.board.subscribe(locationID, client)
	defer unsubscribe()

	if err := s.board.sendState(ctx, locationID, client); err != nil {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "failed to load promotions"})
		return
	}

	heartbeat := s.Config.WSHeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(heartbeat * 2))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(heartbeat * 2))
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

func parseInt64(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
