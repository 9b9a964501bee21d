// Package relay forwards backend events to local processes over a
// websocket and accepts notifications from them.
package relay

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"xxmm/internal/events"
	"xxmm/internal/logging"

	"github.com/gorilla/websocket"
)

// MessageType labels websocket frames
type MessageType string

const (
	MsgTypeEvent MessageType = "event"
	MsgTypeSnack MessageType = "snack"
	MsgTypePing  MessageType = "ping"
	MsgTypePong  MessageType = "pong"
	MsgTypeError MessageType = "error"
)

const (
	maxClients      = 10
	maxAuthAttempts = 50
	authLockoutTime = 1 * time.Minute
	writeTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
	maxMessageSize  = 64 * 1024
)

// ClientMessage represents a message from a client
type ClientMessage struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message,omitempty"`
	SnackType string      `json:"snackType,omitempty"`
	Duration  uint64      `json:"duration,omitempty"`
	Align     string      `json:"align,omitempty"`
}

// ServerMessage represents a message to a client
type ServerMessage struct {
	Type    MessageType `json:"type"`
	Name    string      `json:"name,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ClientInfo represents a connected client
type ClientInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
	UserAgent   string    `json:"userAgent"`
	RemoteAddr  string    `json:"remoteAddr"`
	writeMu     sync.Mutex
}

type authAttempt struct {
	count    int
	lastTime time.Time
}

// Server is the local event relay
type Server struct {
	token        string
	clients      map[*websocket.Conn]*ClientInfo
	authAttempts map[string]*authAttempt
	mu           sync.RWMutex
	authMu       sync.Mutex
	port         int
	server       *http.Server
	upgrader     websocket.Upgrader
	running      bool
	onSnack      func(events.Notification)
}

// NewServer creates a relay with a fresh token
func NewServer() (*Server, error) {
	s := &Server{
		clients:      make(map[*websocket.Conn]*ClientInfo),
		authAttempts: make(map[string]*authAttempt),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
	if _, err := s.GenerateToken(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetSnackHandler sets the callback for notifications sent by clients
func (s *Server) SetSnackHandler(handler func(events.Notification)) {
	s.mu.Lock()
	s.onSnack = handler
	s.mu.Unlock()
}

// checkOrigin accepts local pages and the Wails webview
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, prefix := range []string{
		"http://localhost", "https://localhost",
		"http://127.0.0.1", "https://127.0.0.1",
		"wails://", "http://wails.localhost",
	} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}

	logging.Warn("Relay connection rejected: invalid origin", "origin", origin)
	return false
}

// GenerateToken replaces the access token
func (s *Server) GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}

	token := hex.EncodeToString(bytes)
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return token, nil
}

// Token returns the current access token
func (s *Server) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Server) validateToken(token string) bool {
	if token == "" {
		return false
	}
	s.mu.RLock()
	stored := s.token
	s.mu.RUnlock()
	return stored != "" && subtle.ConstantTimeCompare([]byte(token), []byte(stored)) == 1
}

func (s *Server) checkRateLimit(ip string) bool {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	attempt, exists := s.authAttempts[ip]
	if !exists {
		return true
	}
	if time.Since(attempt.lastTime) > authLockoutTime {
		delete(s.authAttempts, ip)
		return true
	}
	return attempt.count < maxAuthAttempts
}

func (s *Server) recordFailedAuth(ip string) {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	attempt, exists := s.authAttempts[ip]
	if !exists {
		attempt = &authAttempt{}
		s.authAttempts[ip] = attempt
	}
	attempt.count++
	attempt.lastTime = time.Now()

	if attempt.count >= maxAuthAttempts {
		logging.Warn("Relay client locked out due to failed auth attempts", "ip", ip)
	}
}

func (s *Server) resetAuthAttempts(ip string) {
	s.authMu.Lock()
	delete(s.authAttempts, ip)
	s.authMu.Unlock()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler returns the relay routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start listens on 127.0.0.1:port. Port 0 picks a free port, see Port.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("relay already running")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("relay listen: %w", err)
	}
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true
	srv := s.server
	s.mu.Unlock()

	logging.Info("Relay server starting", "port", s.port)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Relay server stopped", "error", err)
		}
	}()
	return nil
}

// Stop closes every client and shuts the server down
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false

	type entry struct {
		conn *websocket.Conn
		info *ClientInfo
	}
	toClose := make([]entry, 0, len(s.clients))
	for conn, info := range s.clients {
		toClose = append(toClose, entry{conn, info})
	}
	s.clients = make(map[*websocket.Conn]*ClientInfo)
	srv := s.server
	s.mu.Unlock()

	for _, c := range toClose {
		c.info.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
		c.info.writeMu.Unlock()
		c.conn.Close()
	}

	logging.Info("Relay server stopping")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Port returns the bound port
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Clients returns the connected clients
func (s *Server) Clients() []ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, info := range s.clients {
		clients = append(clients, ClientInfo{
			ID:          info.ID,
			ConnectedAt: info.ConnectedAt,
			UserAgent:   info.UserAgent,
			RemoteAddr:  info.RemoteAddr,
		})
	}
	return clients
}

// Emit broadcasts an event to every client. It implements events.Emitter.
func (s *Server) Emit(name string, data ...interface{}) {
	msg := ServerMessage{Type: MsgTypeEvent, Name: name}
	switch len(data) {
	case 0:
	case 1:
		msg.Data = data[0]
	default:
		msg.Data = data
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal relay event", "event", name, "error", err)
		return
	}

	s.mu.RLock()
	type entry struct {
		conn *websocket.Conn
		info *ClientInfo
	}
	targets := make([]entry, 0, len(s.clients))
	for conn, info := range s.clients {
		targets = append(targets, entry{conn, info})
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if err := s.write(c.conn, c.info, msgBytes); err != nil {
			logging.Debug("Failed to write relay event", "clientId", c.info.ID, "error", err)
		}
	}
}

func (s *Server) write(conn *websocket.Conn, client *ClientInfo, msg []byte) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *Server) send(conn *websocket.Conn, client *ClientInfo, msg ServerMessage) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal relay message", "error", err)
		return
	}
	if err := s.write(conn, client, msgBytes); err != nil {
		logging.Debug("Failed to send relay message", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	count := len(s.clients)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": count,
		"time":    time.Now().Unix(),
	}); err != nil {
		logging.Error("Failed to encode health response", "error", err)
	}
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if !s.checkRateLimit(ip) {
		http.Error(w, "Too many attempts, try again later", http.StatusTooManyRequests)
		logging.Warn("Relay connection rejected: rate limited", "ip", ip)
		return
	}

	token := r.Header.Get("Authorization")
	if strings.HasPrefix(token, "Bearer ") {
		token = strings.TrimPrefix(token, "Bearer ")
	} else {
		token = r.URL.Query().Get("token")
	}
	if !s.validateToken(token) {
		s.recordFailedAuth(ip)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logging.Warn("Relay connection rejected: invalid token", "remoteAddr", r.RemoteAddr)
		return
	}
	s.resetAuthAttempts(ip)

	s.mu.RLock()
	count := len(s.clients)
	s.mu.RUnlock()
	if count >= maxClients {
		http.Error(w, "Maximum connections reached", http.StatusServiceUnavailable)
		logging.Warn("Relay connection rejected: max clients reached", "count", count)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	idBytes := make([]byte, 8)
	if _, err := rand.Read(idBytes); err != nil {
		logging.Error("Failed to generate client ID", "error", err)
		conn.Close()
		return
	}
	client := &ClientInfo{
		ID:          hex.EncodeToString(idBytes),
		ConnectedAt: time.Now(),
		UserAgent:   r.UserAgent(),
		RemoteAddr:  r.RemoteAddr,
	}

	s.mu.Lock()
	s.clients[conn] = client
	s.mu.Unlock()
	logging.Info("Relay client connected", "clientId", client.ID)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		logging.Info("Relay client disconnected", "clientId", client.ID)
	}()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error("WebSocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			s.send(conn, client, ServerMessage{Type: MsgTypeError, Message: "Invalid message format"})
			continue
		}
		s.handleClientMessage(conn, client, &msg)
	}
}

func (s *Server) handleClientMessage(conn *websocket.Conn, client *ClientInfo, msg *ClientMessage) {
	switch msg.Type {
	case MsgTypePing:
		s.send(conn, client, ServerMessage{Type: MsgTypePong})

	case MsgTypeSnack:
		if strings.TrimSpace(msg.Message) == "" {
			s.send(conn, client, ServerMessage{Type: MsgTypeError, Message: "Message required"})
			return
		}
		s.mu.RLock()
		handler := s.onSnack
		s.mu.RUnlock()
		if handler == nil {
			s.send(conn, client, ServerMessage{Type: MsgTypeError, Message: "Notifications not available"})
			return
		}
		handler(events.NewNotification(msg.Message, msg.SnackType, msg.Duration, msg.Align))

	default:
		s.send(conn, client, ServerMessage{Type: MsgTypeError, Message: fmt.Sprintf("Unknown message type: %s", msg.Type)})
	}
}
