package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"lnskit/internal/events"
	"lnskit/internal/store"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// RunEventsHandler handles GET /v1/runs/{id}/events. It upgrades to a
// WebSocket, sends the current run status, then streams progress messages
// until the run reaches a terminal status or the client goes away.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.GetRun(r.Context(), id); err != nil {
		s.storeProblem(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var mu sync.Mutex
	write := func(msg events.Message) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}

	// subscribe before reading the status so a run finishing in between is
	// not missed
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		return
	}
	if data, err := json.Marshal(run); err == nil {
		if err := write(events.Message{Type: MessageRunStatus, Data: data}); err != nil {
			return
		}
	}
	if run.Status.Terminal() {
		closeNormal(conn, &mu)
		return
	}

	// read loop only services control frames and detects disconnects
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := write(msg); err != nil {
				return
			}
			if msg.Type == MessageRunStatus && terminal(msg.Data) {
				closeNormal(conn, &mu)
				return
			}
		case <-ticker.C:
			mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			mu.Unlock()
			if err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func terminal(data json.RawMessage) bool {
	var run store.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return false
	}
	return run.Status.Terminal()
}

func closeNormal(conn *websocket.Conn, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"), time.Now().Add(wsWriteWait))
}
