package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/events"
)

// StreamAppender appends entries to a durable stream. persistence.Redis
// satisfies it.
type StreamAppender interface {
	Append(ctx context.Context, stream string, values map[string]any) (string, error)
}

// NotificationService forwards domain events to the log and, when
// configured, to a redis stream for downstream consumers.
type NotificationService struct {
	dispatcher events.Dispatcher
	stream     StreamAppender
	streamName string
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. stream may be nil.
func NewNotificationService(dispatcher events.Dispatcher, stream StreamAppender, streamName string, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		stream:     stream,
		streamName: streamName,
		logger:     logger.Named("notification"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("subject_id", event.SubjectID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload),
	)
	n.sendEmailNotificationStub(event)
	return n.appendToStream(ctx, event)
}

func (n *NotificationService) appendToStream(ctx context.Context, event events.Event) error {
	if n.stream == nil || !n.cfg.PublishEvents {
		return nil
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_, err = n.stream.Append(ctx, n.streamName, map[string]any{
		"id":         event.ID,
		"type":       string(event.Type),
		"subject_id": event.SubjectID,
		"actor_id":   event.ActorID,
		"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
		"payload":    string(payload),
	})
	return err
}

func (n *NotificationService) sendEmailNotificationStub(event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	switch event.Type {
	case events.EventTransferInitiated, events.EventTransferCompleted, events.EventTransferRejected, events.EventOrganizationDecided:
		n.logger.Debug("sendEmailNotificationStub",
			zap.String("from", n.cfg.EmailFrom),
			zap.String("subject_id", event.SubjectID),
			zap.String("event_type", string(event.Type)))
	}
}
