package services

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// EditorClient represents a single connected editor instance.
type EditorClient struct {
	Conn      *websocket.Conn
	SessionID string
	Send      chan []byte
}

// ResetEvent tells bound editors to discard local edits and re-derive from
// authoritative data.
type ResetEvent struct {
	Event        string `json:"event"`
	ResetVersion uint64 `json:"resetVersion"`
}

// SaveStateEvent mirrors the session's saving flag and error banner.
type SaveStateEvent struct {
	Event     string `json:"event"`
	IsSaving  bool   `json:"isSaving"`
	SaveError string `json:"saveError,omitempty"`
}

// EditorHub manages connected editor clients per session and pushes reset and
// save-state events to them.
type EditorHub struct {
	sessionClients map[string]map[*EditorClient]bool
	register       chan *EditorClient
	unregister     chan *EditorClient
	mu             sync.RWMutex
}

// NewEditorHub creates a new hub instance.
func NewEditorHub() *EditorHub {
	return &EditorHub{
		sessionClients: make(map[string]map[*EditorClient]bool),
		register:       make(chan *EditorClient),
		unregister:     make(chan *EditorClient),
	}
}

// Run starts the hub's main loop. This should be run as a goroutine.
func (h *EditorHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.sessionClients[client.SessionID]; !ok {
				h.sessionClients[client.SessionID] = make(map[*EditorClient]bool)
			}
			h.sessionClients[client.SessionID][client] = true
			log.Printf("Editor client connected for session: %s", client.SessionID)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.sessionClients[client.SessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.sessionClients, client.SessionID)
					}
				}
			}
			log.Printf("Editor client disconnected for session: %s", client.SessionID)
			h.mu.Unlock()
		}
	}
}

// Register queues a client for registration.
func (h *EditorHub) Register(client *EditorClient) {
	h.register <- client
}

// Unregister queues a client for unregistration.
func (h *EditorHub) Unregister(client *EditorClient) {
	h.unregister <- client
}

// ResetVersionChanged broadcasts a reset event to every editor bound to the
// session. Wired as the session manager's reset listener.
func (h *EditorHub) ResetVersionChanged(sessionID string, version uint64) {
	h.broadcast(sessionID, ResetEvent{Event: "reset", ResetVersion: version})
}

// SaveStateChanged broadcasts the session's saving flag transition.
func (h *EditorHub) SaveStateChanged(sessionID string, saving bool, saveError string) {
	h.broadcast(sessionID, SaveStateEvent{Event: "save-state", IsSaving: saving, SaveError: saveError})
}

func (h *EditorHub) broadcast(sessionID string, event any) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling editor event for session %s: %v", sessionID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.sessionClients[sessionID]; ok {
		for client := range clients {
			select {
			case client.Send <- message:
			default:
				// Slow client; drop the event rather than block the save path.
			}
		}
	}
}
