package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/xhad/papertrail/internal/models"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// ReviewIndex finds previously archived reviews relevant to a query.
type ReviewIndex interface {
	Search(ctx context.Context, query string, limit int) ([]models.ArchivedReview, error)
}

// Responder answers a question using archived reviews as context.
type Responder interface {
	Ask(ctx context.Context, query string, reviews []models.ArchivedReview) (string, error)
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Addr       string
	MaxResults int
}

// WSServer answers questions about the review archive over WebSocket,
// and exposes the raw similarity search as a JSON endpoint.
type WSServer struct {
	config    Config
	index     ReviewIndex
	responder Responder
	logger    *zap.Logger
}

func NewWSServer(config Config, index ReviewIndex, responder Responder, logger *zap.Logger) (*WSServer, error) {
	if index == nil {
		return nil, fmt.Errorf("review index is required")
	}
	if responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WSServer{
		config:    config,
		index:     index,
		responder: responder,
		logger:    logger,
	}, nil
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *WSServer) ListenAndServe() error {
	s.logger.Info("starting server", zap.String("addr", s.config.Addr))
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("malformed message", zap.Error(err))
			continue
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	query := msg.Content
	if query == "" {
		s.sendMessage(conn, "error", "empty query")
		return
	}

	s.sendMessage(conn, "status", "Searching archived reviews")

	reviews, err := s.index.Search(ctx, query, s.config.MaxResults)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error querying reviews: %v", err))
		return
	}

	if len(reviews) == 0 {
		s.sendMessage(conn, "response", "No archived reviews match that question yet.")
		return
	}

	answer, err := s.responder.Ask(ctx, query, reviews)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
		return
	}

	s.sendMessage(conn, "response", answer)
}

func (s *WSServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	limit := s.config.MaxResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	reviews, err := s.index.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reviews)
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("failed to send message", zap.Error(err))
	}
}
