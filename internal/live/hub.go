// Package live pushes bracket and score events to websocket viewers of a league.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type Message struct {
	Type     string    `json:"type"`
	LeagueID uuid.UUID `json:"leagueId"`
	Payload  any       `json:"payload"`
}

// Hub fans messages out to the clients watching each league.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	rooms      map[uuid.UUID]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run processes registrations until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.leagueID]; !ok {
				h.rooms[client.leagueID] = make(map[*Client]bool)
			}
			h.rooms[client.leagueID][client] = true
			slog.Debug("Viewer joined league", "league_id", client.leagueID, "viewers", len(h.rooms[client.leagueID]))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, room := range h.rooms {
				for client := range room {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.leagueID]
	if !ok || !room[client] {
		return
	}
	client.close()
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.leagueID)
	}
	slog.Debug("Viewer left league", "league_id", client.leagueID, "viewers", len(room))
}

// Viewers returns how many clients currently watch the league.
func (h *Hub) Viewers(leagueID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[leagueID])
}

// Broadcast sends an event to every viewer of the league. Slow viewers whose
// buffer is full miss the message rather than stalling the caller.
func (h *Hub) Broadcast(leagueID uuid.UUID, eventType string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[leagueID]
	if !ok {
		return
	}

	raw, err := json.Marshal(Message{Type: eventType, LeagueID: leagueID, Payload: payload})
	if err != nil {
		slog.Error("Failed to encode live message", "league_id", leagueID, "type", eventType, "error", err)
		return
	}

	for client := range room {
		if !client.send(raw) {
			slog.Warn("Viewer buffer full, message dropped", "league_id", leagueID, "type", eventType)
		}
	}
}
