package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/config"
	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/notifier"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
)

// wsRoomsPrefix is served outside gin: gin's writer refuses the hijack
// websocket.Accept performs after writing the 101 status.
const wsRoomsPrefix = "/ws/rooms/"

// Rooms is the room store surface the transport needs.
type Rooms interface {
	CreateRoom(ctx context.Context, roomID string) (roomstore.CreateResult, error)
	CreateRandomRoom(ctx context.Context) (string, roomstore.CreateResult, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
	Room(ctx context.Context, roomID string) (roomstore.Room, bool)
	SendMessage(ctx context.Context, roomID, username, text string) error
	Messages(ctx context.Context, roomID string) []roomstore.Message
}

// Subscriber opens message subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, roomID string, cb notifier.Callback) *notifier.Subscription
}

// Server is the HTTP server plus the WebSocket sessions it has hijacked.
type Server struct {
	*stdhttp.Server

	ws     *WSHandler
	cancel context.CancelFunc
}

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(rooms Rooms, subs Subscriber, cfg *config.Config, logger *zerolog.Logger) *Server {
	logger = log.OrNop(logger)
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	roomHandlers := NewRoomHandlers(rooms, logger)
	api := router.Group("/api")
	{
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.GET("/rooms/:id", roomHandlers.GetRoom)
		api.GET("/rooms/:id/messages", roomHandlers.ListMessages)
		api.POST("/rooms/:id/messages", roomHandlers.SendMessage)
	}

	ws := NewWSHandler(rooms, subs, WSOptions{
		ReadLimit:   cfg.MaxMessageBytes,
		SendsPerWin: cfg.MessagesPerMinute,
		Window:      time.Minute,
	}, logger)

	mux := stdhttp.NewServeMux()
	mux.Handle(wsRoomsPrefix, ws)
	mux.Handle("/", router)

	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	return &Server{Server: srv, ws: ws, cancel: cancel}
}

// Shutdown stops the listener, waits for in-flight requests, then cancels
// every WebSocket session and waits until each has unsubscribed.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.cancel()
	return errors.Join(err, s.ws.Wait(ctx))
}

// Sessions reports the number of open WebSocket sessions.
func (s *Server) Sessions() int {
	return s.ws.Sessions()
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
