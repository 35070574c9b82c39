package server

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/websocket"
)

// EventsHandler handles the WebSocket upgrade endpoint GET /api/v1/events.
// Watchers receive job lifecycle events as they land on the server: one
// message per registration and per status update.
//
// Topic subscription is declared at connection time via the `topics` query
// parameter; the global jobs topic is used when none is given.
//
// Example connection URL:
//
//	wss://host:8433/api/v1/events?topics=job:uuid1,job:uuid2
type EventsHandler struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *websocket.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:    hub,
		logger: logger.Named("events_handler"),
	}
}

// ServeWS handles GET /api/v1/events.
// It builds the topic list, upgrades the connection and starts the watcher
// read/write pumps. The handler blocks until the connection closes, which is
// expected for WebSocket handlers.
func (h *EventsHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	topics := resolveTopics(r)

	client, err := websocket.NewClient(h.hub, w, r, topics, h.logger)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Warn("ws: upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("ws: watcher connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Strings("topics", topics),
	)

	// Run blocks until the connection closes. readPump and writePump handle
	// cleanup and hub unregistration internally.
	client.Run()

	h.logger.Info("ws: watcher disconnected",
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// resolveTopics builds the topic list for a watcher connection from the
// comma-separated `topics` query parameter. Unknown topic strings are kept
// as-is: the watcher simply never receives messages for topics nothing
// publishes to. Without an explicit list the watcher gets every job event.
func resolveTopics(r *http.Request) []string {
	seen := make(map[string]struct{})
	var topics []string

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, exists := seen[t]; !exists {
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
	}

	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			add(t)
		}
	}

	if len(topics) == 0 {
		topics = []string{websocket.TopicJobs}
	}
	return topics
}
