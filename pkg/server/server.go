package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vilterp/nltemplate/pkg/session"
	"github.com/vilterp/nltemplate/pkg/template"
)

// Server serves template sessions over websockets, one session per
// connection, plus prometheus metrics.
type Server struct {
	store      *template.Store
	metrics    *template.Metrics
	serverMets *metrics
	httpServer *http.Server
	sessOpts   []session.Option

	mu               sync.Mutex
	connections      map[connectionID]*connection
	nextConnectionID int

	ctx context.Context
}

// NewServer builds a server listening on host:port. store may be nil, in
// which case \save and \load are unavailable to clients. sessOpts apply to
// every connection's session.
func NewServer(host string, port int, store *template.Store, templateMetrics *template.Metrics, sessOpts ...session.Option) *Server {
	if templateMetrics == nil {
		templateMetrics = template.NewMetrics()
	}
	s := &Server{
		store:       store,
		metrics:     templateMetrics,
		connections: map[connectionID]*connection{},
		sessOpts:    sessOpts,
		ctx:         context.Background(),
	}
	s.serverMets = newMetrics(s)
	s.httpServer = &http.Server{Addr: fmt.Sprintf("%s:%d", host, port), Handler: s.Handler()}
	return s
}

// Handler serves /ws, /metrics and /debug/pprof.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}),
	)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(_ *http.Request) bool { return true },
	}
	mux.HandleFunc("/ws", func(resp http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(resp, req, nil)
		if err != nil {
			log.Println(err)
			return
		}
		s.addConnection(conn)
	})

	return mux
}

func (s *Server) addConnection(wsConn *websocket.Conn) {
	s.mu.Lock()
	conn := newConnection(wsConn, s, s.nextConnectionID)
	s.nextConnectionID++
	s.connections[conn.id] = conn
	s.mu.Unlock()

	conn.handleStatements()
}

func (s *Server) removeConn(conn *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, conn.id)
}

func (s *Server) numConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *Server) connectionsOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextConnectionID
}

func (s *Server) ListenAndServe() error {
	log.Println("serving HTTP at", fmt.Sprintf("http://%s/", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Close stops the HTTP server. The store is owned by the caller.
func (s *Server) Close() error {
	log.Println("closing http server...")
	if err := s.httpServer.Close(); err != nil {
		return err
	}
	log.Println("bye!")
	return nil
}
