// ABOUTME: HTTP server of the mock node: node API and live endpoints
// ABOUTME: Streams every node to its WebSocket subscribers on a ticker
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/VILLASframework/villas-live-go/internal/api"
	"github.com/VILLASframework/villas-live-go/internal/discovery"
	"github.com/VILLASframework/villas-live-go/internal/version"
)

const (
	// APIPrefix is where the node API is mounted
	APIPrefix = discovery.DefaultAPIPath

	StateStarted = "started"
	StateStopped = "stopped"

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendQueue     = 64
)

// ServerConfig configures the mock node server
type ServerConfig struct {
	Addr       string
	Name       string
	EnableMDNS bool
	Nodes      []Config
}

// Server serves the node API and one live endpoint per node
type Server struct {
	config   ServerConfig
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	nodes  []*Node
	byName map[string]*Node

	subsMu sync.RWMutex
	subs   map[*Node]map[*subscriber]struct{}

	mdnsManager *discovery.Manager
	httpServer  *http.Server

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	started    bool
	isShutdown bool
	wg         sync.WaitGroup
}

// subscriber is one live connection
type subscriber struct {
	conn     *websocket.Conn
	remote   string
	sendChan chan []byte
	dropped  uint64
}

// NewServer creates the server and its nodes
func NewServer(config ServerConfig) (*Server, error) {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Name == "" {
		config.Name = "villas-mock-node"
	}
	if len(config.Nodes) == 0 {
		return nil, errors.New("at least one node is required")
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		byName: make(map[string]*Node),
		subs:   make(map[*Node]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"live"},
			CheckOrigin: func(r *http.Request) bool {
				// Local lab deployments, accept all origins
				return true
			},
		},
		stopChan: make(chan struct{}),
	}

	for _, nc := range config.Nodes {
		n, err := New(nc)
		if err != nil {
			return nil, err
		}
		if _, dup := s.byName[n.Name()]; dup {
			return nil, fmt.Errorf("duplicate node name %q", n.Name())
		}
		s.nodes = append(s.nodes, n)
		s.byName[n.Name()] = n
		s.subs[n] = make(map[*subscriber]struct{})
	}

	s.mux.HandleFunc("GET "+APIPrefix+api.NodesPath, s.handleNodes)
	s.mux.HandleFunc("GET "+APIPrefix+api.NodesPath+"/{node}", s.handleNode)
	s.mux.HandleFunc("GET /{node}", s.handleWebSocket)

	return s, nil
}

// Handler exposes the routes, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Node returns a node by name
func (s *Server) Node(name string) (*Node, bool) {
	n, ok := s.byName[name]
	return n, ok
}

// Start serves until Stop is called. Streams start with the server.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ln net.Listener) error {
	log.Info().Str("name", s.config.Name).Str("version", version.Version).Int("nodes", len(s.nodes)).Msg("Server starting")

	if s.config.EnableMDNS {
		port := 0
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
		s.mdnsManager = discovery.NewManager(discovery.Config{
			Instance: s.config.Name,
			Port:     port,
			APIPath:  APIPrefix,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Warn().Err(err).Msg("Failed to start mDNS advertisement")
		}
	}

	s.StartStreams()

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("Listening")

	select {
	case <-s.stopChan:
		log.Info().Msg("Server shutting down...")
	case err := <-errChan:
		s.Stop()
		s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	}

	s.shutdown()
	log.Info().Msg("Server stopped cleanly")
	return nil
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()
	return s.Start()
}

func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
	}

	// hijacked connections are not closed by Shutdown
	s.subsMu.RLock()
	for _, subs := range s.subs {
		for sub := range subs {
			sub.conn.Close()
		}
	}
	s.subsMu.RUnlock()

	s.wg.Wait()
}

// Close stops streams and live connections of a server driven through
// Handler and StartStreams instead of Start
func (s *Server) Close() {
	s.Stop()
	s.shutdown()
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// StartStreams launches one ticker per node
func (s *Server) StartStreams() {
	s.shutdownMu.Lock()
	s.started = true
	s.shutdownMu.Unlock()

	for _, n := range s.nodes {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.stream(n)
		}()
	}
}

// stream generates messages for n until the server stops
func (s *Server) stream(n *Node) {
	log.Debug().Str("node", n.Name()).Dur("period", n.Period()).Msg("Streaming started")

	ticker := time.NewTicker(n.Period())
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			msg, err := n.Next(now)
			if err != nil {
				log.Error().Err(err).Str("node", n.Name()).Msg("Failed to generate message")
				continue
			}
			s.broadcast(n, msg)
		case <-s.stopChan:
			log.Debug().Str("node", n.Name()).Msg("Streaming stopping")
			return
		}
	}
}

// broadcast queues msg for every subscriber, dropping for slow ones
func (s *Server) broadcast(n *Node, msg []byte) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for sub := range s.subs[n] {
		select {
		case sub.sendChan <- msg:
		default:
			sub.dropped++
			if sub.dropped%100 == 1 {
				log.Warn().Str("node", n.Name()).Str("remote", sub.remote).Uint64("dropped", sub.dropped).Msg("Subscriber too slow")
			}
		}
	}
}

// Subscribers counts live connections of n
func (s *Server) Subscribers(n *Node) int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs[n])
}

func (s *Server) state() string {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	if s.started && !s.isShutdown {
		return StateStarted
	}
	return StateStopped
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	state := s.state()
	infos := make([]api.Node, len(s.nodes))
	for i, n := range s.nodes {
		infos[i] = n.Info(state)
	}
	writeJSON(w, infos)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.byName[r.PathValue("node")]
	if !ok {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, n.Info(s.state()))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// handleWebSocket serves the live endpoint of one node
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	n, ok := s.byName[r.PathValue("node")]
	if !ok {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}

	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	log.Info().Str("node", n.Name()).Str("remote", r.RemoteAddr).Str("client", r.Header.Get("X-Client-Id")).Msg("New live connection")
	s.handleConnection(n, conn, r.RemoteAddr)
}

// handleConnection registers a subscriber and reads its inputs
func (s *Server) handleConnection(n *Node, conn *websocket.Conn, remote string) {
	defer conn.Close()

	sub := &subscriber{
		conn:     conn,
		remote:   remote,
		sendChan: make(chan []byte, sendQueue),
	}

	if !s.register(n, sub) {
		log.Debug().Str("node", n.Name()).Str("remote", remote).Msg("Rejecting live connection during shutdown")
		return
	}
	go func() {
		defer s.wg.Done()
		s.clientWriter(sub)
	}()

	defer func() {
		s.subsMu.Lock()
		delete(s.subs[n], sub)
		s.subsMu.Unlock()
		close(sub.sendChan)
		log.Info().Str("node", n.Name()).Str("remote", remote).Msg("Live connection closed")
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("remote", remote).Msg("WebSocket error")
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		samples, err := n.Receive(data)
		if err != nil {
			log.Warn().Err(err).Str("node", n.Name()).Int("decoded", len(samples)).Msg("Malformed input")
		}
		for _, sample := range samples {
			log.Debug().Str("node", n.Name()).Str("sample", sample.String()).Msg("Received input")
		}
	}
}

// register adds sub and counts its writer in wg unless shutdown has begun
func (s *Server) register(n *Node, sub *subscriber) bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.isShutdown {
		return false
	}

	s.subsMu.Lock()
	s.subs[n][sub] = struct{}{}
	s.subsMu.Unlock()

	s.wg.Add(1)
	return true
}

// clientWriter sends queued messages and keeps the connection alive
func (s *Server) clientWriter(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.sendChan:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sub.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				sub.conn.Close()
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				sub.conn.Close()
				return
			}
		}
	}
}
