// Package gateway exposes the chat-turn operation over a WebSocket
// endpoint. It is deliberately thin: one incoming shape, one outgoing
// shape, and every decision delegated to the gate.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soulmint/soulmint/pkg/config"
	"github.com/soulmint/soulmint/pkg/gate"
	"github.com/soulmint/soulmint/pkg/logger"
	"github.com/soulmint/soulmint/pkg/providers"
)

// wsIncoming is one chat turn request from a client.
type wsIncoming struct {
	SoulID   string `json:"soul_id"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// wsOutgoing is the gated response for one turn.
type wsOutgoing struct {
	Reply              string `json:"reply,omitempty"`
	ExpGained          int    `json:"exp_gained"`
	Level              int    `json:"level,omitempty"`
	Rarity             string `json:"rarity,omitempty"`
	LeveledUp          bool   `json:"leveled_up"`
	EvolutionTriggered bool   `json:"evolution_triggered"`
	Restricted         bool   `json:"restricted"`
	Retryable          bool   `json:"retryable,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Server accepts WebSocket connections and feeds turns to the gate.
type Server struct {
	cfg      config.GatewayConfig
	gate     *gate.Gate
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewServer(cfg config.GatewayConfig, g *gate.Gate) *Server {
	return &Server{
		cfg:  cfg,
		gate: g,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start begins listening. It returns immediately; serving happens on a
// background goroutine until Stop.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWS)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{Addr: addr, Handler: mux}

	logger.InfoCF("gateway", "WebSocket server listening", map[string]any{
		"addr": addr,
		"path": s.cfg.Path,
	})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("gateway", "server error", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("gateway", "upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in wsIncoming
		if err := json.Unmarshal(data, &in); err != nil {
			s.write(conn, wsOutgoing{Error: "malformed request", Restricted: false})
			continue
		}
		if in.SoulID == "" || in.Content == "" {
			s.write(conn, wsOutgoing{Error: "soul_id and content are required"})
			continue
		}

		result, err := s.gate.Handle(r.Context(), in.SoulID, in.Content, in.Language)
		s.write(conn, buildOutgoing(result, err))
	}
}

// buildOutgoing maps the gate's typed outcomes onto the wire shape.
func buildOutgoing(result *gate.ChatResult, err error) wsOutgoing {
	switch {
	case err == nil:
		return wsOutgoing{
			Reply:              result.Reply,
			ExpGained:          result.ExpGained,
			Level:              result.Level,
			Rarity:             result.Rarity.String(),
			LeveledUp:          result.LeveledUp,
			EvolutionTriggered: result.EvolutionTriggered,
		}
	case gate.IsPolicyRejection(err):
		return wsOutgoing{Restricted: true, Error: err.Error()}
	case providers.IsTransient(err):
		return wsOutgoing{Retryable: true, Error: "the companion is busy, try again shortly"}
	default:
		logger.ErrorCF("gateway", "turn failed", map[string]any{"error": err.Error()})
		return wsOutgoing{Error: "something went wrong processing this message"}
	}
}

func (s *Server) write(conn *websocket.Conn, out wsOutgoing) {
	if err := conn.WriteJSON(out); err != nil {
		logger.DebugCF("gateway", "write failed", map[string]any{"error": err.Error()})
	}
}
