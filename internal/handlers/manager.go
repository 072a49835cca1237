package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Manager tracks live WebSocket connections per member and fans member push
// notifications out to them.
type Manager struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	members map[int64]map[*websocket.Conn]struct{}
}

func NewWebSocketManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		members: make(map[int64]map[*websocket.Conn]struct{}),
	}
}

func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return m.upgrader.Upgrade(w, r, nil)
}

// AddMember registers a connection for a member.
func (m *Manager) AddMember(memberID int64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.members[memberID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		m.members[memberID] = conns
	}
	conns[conn] = struct{}{}
}

// RemoveMember drops a connection; the last one removes the member entry.
func (m *Manager) RemoveMember(memberID int64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.members[memberID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(m.members, memberID)
	}
}

// PushToMember sends the payload to every live connection of the member.
// A member with no connections is not an error; broken connections are
// dropped.
func (m *Manager) PushToMember(_ context.Context, memberID int64, payload any) error {
	m.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(m.members[memberID]))
	for conn := range m.members[memberID] {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			m.logger.Error("WebSocket push failed, dropping connection", "member_id", memberID, "error", err)
			conn.Close()
			m.RemoveMember(memberID, conn)
		}
	}

	return nil
}
