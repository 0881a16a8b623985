package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

// WatchHandler pushes status snapshots over a websocket so the teacher
// dashboard does not have to poll. The REST surface stays the source of
// truth; this channel only mirrors what /status would return.
type WatchHandler struct {
	service  *app.LiveQuizService
	upgrader websocket.Upgrader
}

func NewWatchHandler(service *app.LiveQuizService) *WatchHandler {
	return &WatchHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string        `json:"type"`
	Payload domain.Status `json:"payload"`
}

// ServeWatch upgrades the request and streams status snapshots until the
// client disconnects.
func (h *WatchHandler) ServeWatch(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	updates, cancel, err := h.service.Watch(code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("watch upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine only detects disconnects; watchers never send.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "status", Payload: status}); err != nil {
				log.Printf("watch write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
