// Package web provides an HTTP status server for the group controller daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sweeney/group-controller/internal/journal"
	"github.com/sweeney/group-controller/internal/log"
	"github.com/sweeney/group-controller/internal/logic"
	"github.com/sweeney/group-controller/internal/status"
)

// EventSource supplies recent journal entries for /events.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Options tunes the server. The zero value disables caching, rate limiting
// and the /events endpoint.
type Options struct {
	CacheTTL  time.Duration
	RateLimit float64
	Events    EventSource
}

// Server serves the status page over HTTP and pushes cycle updates to
// websocket clients.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	tracker    *status.Tracker
	events     EventSource
	hub        *hub
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:  gin.New(),
		tracker: tracker,
		events:  opts.Events,
		hub:     newHub(),
	}
	go s.hub.run()

	r := s.engine
	r.Use(gin.Recovery(), requestLogger())
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		r.Use(rateLimiter(rate.Limit(opts.RateLimit), burst))
	}

	jsonHandlers := []gin.HandlerFunc{s.handleJSON}
	if opts.CacheTTL > 0 {
		store := cache.New(opts.CacheTTL, 10*opts.CacheTTL)
		jsonHandlers = append([]gin.HandlerFunc{cacheResponse(store, opts.CacheTTL)}, jsonHandlers...)
	}

	r.GET("/", s.handleIndex)
	r.GET("/index.html", s.handleIndex)
	r.GET("/index.json", jsonHandlers...)
	r.GET("/events", s.handleEvents)
	r.GET("/ws", s.hub.serve)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown disconnects websocket clients and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	return s.httpServer.Shutdown(ctx)
}

// Publish pushes a cycle report to websocket clients. Reports without commands
// or deliveries are not sent.
func (s *Server) Publish(r logic.Report, snap status.Snapshot) {
	s.hub.broadcastMessage(newLiveMessage(r, snap))
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, s.tracker.Snapshot()); err != nil {
		log.Warn(c.Request.Context(), "http: render index", log.Err("error", err))
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(journal.DefaultRecent)))
	if err != nil || limit < 1 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..1000"})
		return
	}
	entries, err := s.events.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}
