// Package diagnostics exposes a running cache's internal state over HTTP
// and WebSocket, for operators who want to watch eviction behavior without
// attaching a debugger.
package diagnostics

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/waltercore/rastercache/pkg/tilecache"
)

// eventBacklog bounds the per-subscriber WebSocket send buffer. A client
// slow enough to fill it has events dropped rather than stalling the
// cache's single exclusive lock.
const eventBacklog = 64

// Server serves read-only diagnostics for a single tilecache.Cache.
type Server struct {
	core   *tilecache.Cache
	logger *log.Logger
	echo   *echo.Echo

	upgrader websocket.Upgrader
}

// NewServer constructs a diagnostics Server for core. A nil logger defaults
// to log.Default().
func NewServer(core *tilecache.Cache, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		core:   core,
		logger: logger,
		echo:   echo.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/tiles", s.handleTiles)
	s.echo.GET("/events", s.handleEvents)

	return s
}

// statsView is the JSON shape returned by GET /stats.
type statsView struct {
	NumTiles         int     `json:"numTiles"`
	NumResidentTiles int     `json:"numResidentTiles"`
	MemCapacity      int64   `json:"memCapacity"`
	CurrentMemory    int64   `json:"currentMemory"`
	MemThreshold     float64 `json:"memThreshold"`
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, statsView{
		NumTiles:         s.core.GetNumTiles(),
		NumResidentTiles: s.core.GetNumResidentTiles(),
		MemCapacity:      s.core.GetMemoryCapacity(),
		CurrentMemory:    s.core.GetCurrentMemory(),
		MemThreshold:     s.core.GetMemoryThreshold(),
	})
}

// tileView is the JSON shape of a single tile in GET /tiles.
type tileView struct {
	TileX      int       `json:"tileX"`
	TileY      int       `json:"tileY"`
	Size       int       `json:"size"`
	Writable   bool      `json:"writable"`
	HasDisk    bool      `json:"hasDisk"`
	Resident   bool      `json:"resident"`
	LastAccess time.Time `json:"lastAccess"`
	Action     string    `json:"action"`
}

// tileVisitor collects tile snapshots from Cache.Accept into plain views,
// since TileSnapshot itself carries no json tags (it is an internal cache
// type, not a wire format).
type tileVisitor struct {
	tiles []tileView
}

func (v *tileVisitor) Visit(t tilecache.TileSnapshot, resident bool) {
	v.tiles = append(v.tiles, tileView{
		TileX:      t.TileX,
		TileY:      t.TileY,
		Size:       t.Size,
		Writable:   t.Writable,
		HasDisk:    t.HasDisk,
		Resident:   resident,
		LastAccess: t.LastAccess,
		Action:     t.Action.String(),
	})
}

// handleTiles lists every known tile. When the request's Accept header asks
// for plain text, it renders one line per tile instead of a JSON array, so
// the endpoint remains curl-friendly.
func (s *Server) handleTiles(c echo.Context) error {
	v := &tileVisitor{}
	if err := s.core.Accept(v); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	if c.Request().Header.Get("Accept") == "text/plain" {
		c.Response().Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.Response().WriteHeader(http.StatusOK)
		for _, t := range v.tiles {
			if _, err := c.Response().Write([]byte(formatTileLine(t))); err != nil {
				return err
			}
		}
		return nil
	}

	return c.JSON(http.StatusOK, v.tiles)
}

func formatTileLine(t tileView) string {
	b, _ := json.Marshal(t)
	return string(b) + "\n"
}

// eventSubscriber fans out tile events to one WebSocket client. Events are
// delivered on a buffered channel; a client that falls eventBacklog events
// behind has the newest event dropped rather than blocking the cache.
type eventSubscriber struct {
	events chan tilecache.TileEvent
}

func newEventSubscriber() *eventSubscriber {
	return &eventSubscriber{events: make(chan tilecache.TileEvent, eventBacklog)}
}

func (s *eventSubscriber) OnTileEvent(e tilecache.TileEvent) {
	select {
	case s.events <- e:
	default:
	}
}

// handleEvents upgrades the connection to a WebSocket and streams tile
// lifecycle events as they occur. The connection closes when the client
// disconnects or the write loop hits an error.
func (s *Server) handleEvents(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := newEventSubscriber()
	s.core.SetDiagnostics(true)
	subID := s.core.Subscribe(sub)
	defer s.core.Unsubscribe(subID)

	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	// The read pump's only job is to notice the client going away;
	// gorilla/websocket requires a reader running to process control frames.
	go func() {
		defer closeDone()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case e := <-sub.events:
			if err := conn.WriteJSON(eventView{
				TileX:  e.Tile.TileX,
				TileY:  e.Tile.TileY,
				Action: e.Tile.Action.String(),
			}); err != nil {
				s.logger.Printf("diagnostics: write event: %v", err)
				return nil
			}
		}
	}
}

// eventView is the JSON shape of a single message on GET /events.
type eventView struct {
	TileX  int    `json:"tileX"`
	TileY  int    `json:"tileY"`
	Action string `json:"action"`
}

// Start runs the HTTP server on addr. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.echo.Close()
}
