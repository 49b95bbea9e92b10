package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/princekumarofficial/chat-media-service/internal/delivery"
	"github.com/princekumarofficial/chat-media-service/internal/types"
)

var errMalformedMessage = errors.New("malformed message")

// ErrorSink reports messages a session could not apply.
type ErrorSink interface {
	PublishError(instanceID string, err error)
}

// Session applies console messages to the media instances of one
// connection. Handle must be called from a single goroutine.
type Session struct {
	tracker  *delivery.Tracker
	errors   ErrorSink
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSession(tracker *delivery.Tracker, errs ErrorSink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		tracker:  tracker,
		errors:   errs,
		validate: validator.New(),
		logger:   logger,
	}
}

// Handle decodes and applies one message. Errors are also reported to the
// session's error sink.
func (s *Session) Handle(ctx context.Context, raw []byte) error {
	var msg types.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return s.report("", errMalformedMessage)
	}
	if err := s.validate.Struct(msg); err != nil {
		return s.report(msg.ID, fmt.Errorf("%w: %v", errMalformedMessage, err))
	}

	switch msg.Type {
	case types.MessageMount:
		s.tracker.Mount(ctx, msg.ID, *msg.Attachment)

	case types.MessageEvent:
		ev := delivery.Event{Type: msg.Event.Type, Target: msg.Event.Target}
		if ev.Type == delivery.EventError {
			ev.Err = delivery.ParseTransportError(msg.Event.Error, msg.Event.StatusCode)
		}
		if _, err := s.tracker.Dispatch(ctx, msg.ID, ev); err != nil {
			return s.report(msg.ID, err)
		}

	case types.MessageUnmount:
		s.tracker.Unmount(msg.ID)

	case types.MessageRetry:
		if _, err := s.tracker.Retry(ctx, msg.ID); err != nil {
			return s.report(msg.ID, err)
		}
	}
	return nil
}

// Close discards every media instance of the session.
func (s *Session) Close() {
	s.tracker.Close()
}

func (s *Session) report(id string, err error) error {
	s.logger.Debug("session message rejected", slog.String("id", id), slog.String("error", err.Error()))
	if s.errors != nil {
		s.errors.PublishError(id, err)
	}
	return err
}
