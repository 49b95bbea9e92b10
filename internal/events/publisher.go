package events

import (
	"github.com/princekumarofficial/chat-media-service/internal/delivery"
	"github.com/princekumarofficial/chat-media-service/internal/media"
	"github.com/princekumarofficial/chat-media-service/internal/types"
)

// WebSocketHub interface for the WebSocket hub
type WebSocketHub interface {
	SendToSession(sessionID string, event *types.Event)
	IsSessionConnected(sessionID string) bool
}

// MediaPublisher pushes delivery state changes of one console session.
// It implements delivery.Sink.
type MediaPublisher struct {
	hub       WebSocketHub
	sessionID string
}

// NewMediaPublisher creates a publisher bound to sessionID.
func NewMediaPublisher(hub WebSocketHub, sessionID string) *MediaPublisher {
	return &MediaPublisher{
		hub:       hub,
		sessionID: sessionID,
	}
}

// Publish sends a media.state event; it is a no-op once the session is gone.
func (p *MediaPublisher) Publish(instanceID string, m media.Media, s delivery.State) {
	if !p.hub.IsSessionConnected(p.sessionID) {
		return
	}

	event := types.NewEvent(types.EventMediaState, &types.MediaStateEvent{
		ID:         instanceID,
		Kind:       m.Kind,
		Transport:  m.Resolution.Transport,
		Normalized: m.Resolution.Normalized,
		State:      s.View(),
	})
	p.hub.SendToSession(p.sessionID, event)
}

// PublishError sends a media.error event.
func (p *MediaPublisher) PublishError(instanceID string, err error) {
	if !p.hub.IsSessionConnected(p.sessionID) {
		return
	}
	event := types.NewEvent(types.EventMediaError, &types.MediaErrorEvent{
		ID:    instanceID,
		Error: err.Error(),
	})
	p.hub.SendToSession(p.sessionID, event)
}
