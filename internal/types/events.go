package types

import (
	"time"

	"github.com/princekumarofficial/chat-media-service/internal/delivery"
	"github.com/princekumarofficial/chat-media-service/internal/media"
)

// EventType represents the type of real-time event
type EventType string

const (
	EventMediaState EventType = "media.state"
	EventMediaError EventType = "media.error"
)

// MessageType is the type of a message sent by a console session.
type MessageType string

const (
	MessageMount   MessageType = "media.mount"
	MessageEvent   MessageType = "media.event"
	MessageUnmount MessageType = "media.unmount"
	MessageRetry   MessageType = "media.retry"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// ClientMessage is one message from a console session. ID names the media
// element on the page.
type ClientMessage struct {
	Type       MessageType       `json:"type" validate:"required,oneof=media.mount media.event media.unmount media.retry"`
	ID         string            `json:"id" validate:"required,max=128"`
	Attachment *media.Attachment `json:"attachment,omitempty" validate:"required_if=Type media.mount"`
	Event      *LoadEvent        `json:"event,omitempty" validate:"required_if=Type media.event"`
}

// LoadEvent is a load-lifecycle signal reported by the media element.
type LoadEvent struct {
	Type   delivery.EventType `json:"type" validate:"required,oneof=start success error"`
	Target string             `json:"target,omitempty"`
	// Error is the element's error label, e.g. "network" or "decode".
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// MediaStateEvent is pushed whenever a media instance changes state.
type MediaStateEvent struct {
	ID         string          `json:"id"`
	Kind       media.Kind      `json:"kind"`
	Transport  media.Transport `json:"transport"`
	Normalized string          `json:"normalized,omitempty"`
	State      delivery.View   `json:"state"`
}

// MediaErrorEvent reports a message the session could not apply.
type MediaErrorEvent struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
