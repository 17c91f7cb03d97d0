// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/magcal/internal/magcal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSResponse is every message sent to websocket clients.
type WSResponse struct {
	Type     string           `json:"type"` // snapshot, progress, result
	Progress *magcal.Progress `json:"progress,omitempty"`
	Status   *Status          `json:"status,omitempty"`
	Results  *Record          `json:"results,omitempty"`
}

// Status is the latest known state of a calibration run.
type Status struct {
	Session   *magcal.Progress  `json:"session,omitempty"`
	Instances []magcal.Progress `json:"instances"`
	Result    *Record           `json:"result,omitempty"`
}

type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(msg WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Hub keeps the latest progress per instance and pushes every update to
// connected websocket clients. It implements magcal.Reporter.
type Hub struct {
	mu        sync.RWMutex
	session   *magcal.Progress
	instances map[int]magcal.Progress
	result    *Record
	clients   map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{
		instances: map[int]magcal.Progress{},
		clients:   map[*wsClient]struct{}{},
	}
}

func (h *Hub) Report(p magcal.Progress) {
	h.mu.Lock()
	if p.Instance < 0 {
		h.session = &p
	} else {
		h.instances[p.Instance] = p
	}
	h.mu.Unlock()

	h.broadcast(WSResponse{Type: "progress", Progress: &p})
}

// PublishResult stores rec and pushes it to clients.
func (h *Hub) PublishResult(rec Record) {
	h.mu.Lock()
	h.result = &rec
	h.mu.Unlock()

	h.broadcast(WSResponse{Type: "result", Results: &rec})
}

// Status returns a copy of the latest state, instances ordered by number.
func (h *Hub) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Status{Instances: make([]magcal.Progress, 0, len(h.instances))}
	if h.session != nil {
		s := *h.session
		st.Session = &s
	}
	for _, p := range h.instances {
		st.Instances = append(st.Instances, p)
	}
	sort.Slice(st.Instances, func(i, j int) bool { return st.Instances[i].Instance < st.Instances[j].Instance })
	if h.result != nil {
		r := *h.result
		st.Result = &r
	}
	return st
}

func (h *Hub) broadcast(msg WSResponse) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			log.Printf("web: websocket write error: %v", err)
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// HandleWS upgrades the request, sends a snapshot and then streams
// updates until the client goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn}

	st := h.Status()
	if err := c.send(WSResponse{Type: "snapshot", Status: &st}); err != nil {
		log.Printf("web: websocket write error: %v", err)
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

// HandleStatus serves the latest state as JSON.
func (h *Hub) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.Status()
	if st.Session == nil && len(st.Instances) == 0 && st.Result == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
