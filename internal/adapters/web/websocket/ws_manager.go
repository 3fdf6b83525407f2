package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jmtrigo/riskmap/internal/adapters/web/middleware"
	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Allow same-origin (no Origin header)
		if origin == "" {
			return true
		}

		allowedOrigins := []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
			"http://[::1]:8080",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: Rejected origin: %s", origin)
		return false
	},
}

// Message is the envelope pushed to every connected client.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Manager tracks connected UI clients and pushes synthesis run progress to
// them. It implements ports.RunNotifier so the orchestrator can emit stage
// events without knowing about websockets.
type Manager struct {
	clients map[*websocket.Conn]*domain.User
	mu      sync.Mutex
}

var _ ports.RunNotifier = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{
		clients: make(map[*websocket.Conn]*domain.User),
	}
}

// HandleWebSocket upgrades an authenticated request to a push channel.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = user
	m.mu.Unlock()

	log.Printf("WebSocket connected: user=%s, role=%s", user.Username, user.Role)

	// Clean up on disconnect
	go func() {
		defer conn.Close()
		defer func() {
			m.mu.Lock()
			delete(m.clients, conn)
			m.mu.Unlock()
			log.Printf("WebSocket disconnected: user=%s", user.Username)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// NotifyRunStage broadcasts a pipeline stage change for a running synthesis.
func (m *Manager) NotifyRunStage(projectID, runID, stage string) {
	m.broadcast(Message{
		Type: "run.stage",
		Payload: map[string]string{
			"project_id": projectID,
			"run_id":     runID,
			"stage":      stage,
		},
	})
}

// NotifyRunFinished broadcasts the terminal outcome of a synthesis run.
func (m *Manager) NotifyRunFinished(projectID, runID string, err error) {
	payload := map[string]string{
		"project_id": projectID,
		"run_id":     runID,
		"outcome":    "completed",
	}
	if err != nil {
		payload["outcome"] = "failed"
		payload["error"] = err.Error()
	}
	m.broadcast(Message{Type: "run.finished", Payload: payload})
}

// BroadcastLog pushes a free-form log line to all clients.
func (m *Manager) BroadcastLog(message, level string) {
	m.broadcast(Message{
		Type: "log",
		Payload: map[string]string{
			"message": message,
			"level":   level,
		},
	})
}

func (m *Manager) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Println("JSON marshal error:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}
