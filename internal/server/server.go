// Package server wires the StarBus HTTP surface, the live state-change
// stream, and the embedded NATS broadcaster into one process.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/starbus/coordinator/internal/catalog"
	"github.com/starbus/coordinator/internal/docstore"
	natsinfra "github.com/starbus/coordinator/internal/nats"
	"github.com/starbus/coordinator/internal/notifications"
	"github.com/starbus/coordinator/internal/starbus"
	"github.com/starbus/coordinator/internal/starbushttp"
	"github.com/starbus/coordinator/internal/starbusnotify"
)

// Config collects everything the Server needs to start listening.
type Config struct {
	Addr            string
	DB              *sql.DB
	Executor        starbus.Executor
	EmbeddedNATS    bool
	NATSPort        int
	NATSDataDir     string
	DesktopNotify   bool
	WorkspaceRoot   func() (string, error)
}

// Server is the StarBus coordinator process: an HTTP API, a live
// /starbus/state/stream websocket, and an optional embedded NATS
// broadcaster.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *Hub

	engine     *starbus.Engine
	natsServer *natsinfra.EmbeddedServer
	natsClient *natsinfra.Client

	upgrader websocket.Upgrader
	addr     string

	ShutdownChan chan struct{}
	startTime    time.Time
}

// New builds a Server from cfg. It initializes the document store and
// catalog schemas, constructs the engine, and wires the HTTP router.
func New(cfg Config) (*Server, error) {
	docs := docstore.NewStore(cfg.DB)
	if err := docs.Init(); err != nil {
		return nil, fmt.Errorf("initializing document store: %w", err)
	}
	cat := catalog.New(cfg.DB)
	if err := cat.Init(); err != nil {
		return nil, fmt.Errorf("initializing catalog: %w", err)
	}

	engine := starbus.NewEngine(starbus.NewStore(docs), cat, cfg.Executor)
	if cfg.WorkspaceRoot != nil {
		engine.WorkspaceRoot = cfg.WorkspaceRoot
	}

	s := &Server{
		router:       mux.NewRouter(),
		hub:          NewHub(),
		engine:       engine,
		addr:         cfg.Addr,
		upgrader:     websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: func(r *http.Request) bool { return true }},
		ShutdownChan: make(chan struct{}),
		startTime:    time.Now(),
	}

	notifiers := []interface {
		NotifyStateChange(taskID string, status string)
	}{s.hub}

	if cfg.EmbeddedNATS {
		embedded, err := natsinfra.NewEmbeddedServer(natsinfra.EmbeddedServerConfig{
			Port:      cfg.NATSPort,
			JetStream: cfg.NATSDataDir != "",
			DataDir:   cfg.NATSDataDir,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring embedded NATS server: %w", err)
		}
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("starting embedded NATS server: %w", err)
		}
		s.natsServer = embedded

		client, err := natsinfra.NewClient(embedded.URL())
		if err != nil {
			return nil, fmt.Errorf("connecting NATS client: %w", err)
		}
		s.natsClient = client

		if streams, err := natsinfra.NewStreamManager(client.RawConn()); err != nil {
			log.Printf("[STARBUS] JetStream unavailable, state broadcasts will not be durable: %v", err)
		} else if err := streams.SetupStreams(); err != nil {
			log.Printf("[STARBUS] failed to provision durable state stream: %v", err)
		}

		notifiers = append(notifiers, starbusnotify.NewNATSPublisher(client))
	}

	if cfg.DesktopNotify {
		notifiers = append(notifiers, starbusnotify.NewDesktopNotifier(notifications.NewDefaultManager()))
	}

	var notifier starbushttp.StateNotifier = starbusnotify.Fanout{Notifiers: notifiers}

	handler := starbushttp.NewHandler(engine, notifier)
	handler.RegisterRoutes(s.router)
	s.router.HandleFunc("/starbus/state/stream", s.handleStateStream).Methods(http.MethodGet)
	s.router.Use(SecurityHeadersMiddleware)

	return s, nil
}

// Engine exposes the underlying engine, mostly for tests and cmd wiring.
func (s *Server) Engine() *starbus.Engine {
	return s.engine
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[STARBUS] websocket upgrade failed: %v", err)
		return
	}

	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, WebSocketBufferSize)}
	s.hub.Register(client)

	go client.writePump()
	client.readPump()
}

// Start runs the hub loop and begins serving HTTP. It blocks until the
// server stops listening.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	go s.hub.Run()

	log.Printf("starbus coordinator listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server, the hub, and the embedded
// NATS server (if any).
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()

	if s.natsClient != nil {
		s.natsClient.Close()
	}
	if s.natsServer != nil {
		s.natsServer.Shutdown()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// RequestShutdown signals for a graceful shutdown; safe to call more than
// once.
func (s *Server) RequestShutdown() {
	select {
	case <-s.ShutdownChan:
	default:
		close(s.ShutdownChan)
	}
}
