package models

import "time"

// EventType names a realtime broadcast.
type EventType string

const (
	EventReportSubmitted     EventType = "report_submitted"
	EventReportStatusChanged EventType = "report_status_changed"
	EventUserRegistered      EventType = "user_registered"
)

// Event is published on the realtime channel and fanned out to websocket clients.
type Event struct {
	Type       EventType              `json:"type"`
	ClassID    string                 `json:"class_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NotificationKind selects the e-mail template a notification renders.
type NotificationKind string

const (
	NotificationWelcome      NotificationKind = "welcome"
	NotificationReportStatus NotificationKind = "report_status"
)

// Notification is an e-mail intent emitted after a committed state change.
type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	Recipient string            `json:"recipient"`
	Payload   map[string]string `json:"payload,omitempty"`
}
