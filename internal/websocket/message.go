// Package websocket implements the real-time pub/sub hub that pushes backup
// job events to connected watchers (monitoring UIs, `relique jobs list
// --watch` style tooling). It uses gorilla/websocket under the hood and
// exposes a topic-based broadcast API consumed by the server's protocol
// handlers.
//
// Topic naming convention:
//
//	jobs        all job lifecycle events on this server
//	job:<uuid>  events for a specific backup job
package websocket

import "github.com/google/uuid"

// TopicJobs carries every job lifecycle event on this server.
const TopicJobs = "jobs"

// JobTopic returns the topic carrying events for one specific job.
func JobTopic(id uuid.UUID) string {
	return "job:" + id.String()
}

// MessageType identifies the kind of event carried by a Message.
type MessageType string

const (
	// MsgJobRegistered is sent when a client registers a new backup job.
	MsgJobRegistered MessageType = "job.registered"

	// MsgJobStatus is sent when a job transitions between states
	// (pending, active, then done, incomplete or error).
	MsgJobStatus MessageType = "job.status"

	// MsgPing is sent by the hub periodically to keep the connection alive
	// and let the watcher detect stale connections.
	MsgPing MessageType = "ping"
)

// Message is the envelope for every WebSocket frame sent to watchers.
//
// JSON example:
//
//	{"type":"job.status","topic":"job:3f8a...","payload":{"status":"done"}}
type Message struct {
	// Type identifies the kind of event so the watcher can route it.
	Type MessageType `json:"type"`

	// Topic is the pub/sub channel this message was published on.
	Topic string `json:"topic"`

	// Payload carries the event-specific data. The shape varies by Type:
	//   - job.registered: the full job record
	//   - job.status:     {"uuid":"...","status":"done"}
	//   - ping:           {} (empty)
	Payload any `json:"payload"`
}
