// Package notify provides global error notifiers for classified failures.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// Event is the wire form of a reported error.
type Event struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Status    int       `json:"status,omitempty"`
	Method    string    `json:"method,omitempty"`
	Path      string    `json:"path,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent converts an error into an Event.
func NewEvent(err *apicore.Error) Event {
	return Event{
		Kind:      err.Kind.String(),
		Message:   err.Message,
		Status:    err.Status,
		Method:    err.Method,
		Path:      err.Path,
		RequestID: err.RequestID,
		Timestamp: err.Timestamp,
	}
}

// LogNotifier writes every reported error to a logger.
type LogNotifier struct {
	logger apicore.Logger
}

// NewLogNotifier creates a notifier logging through logger.
func NewLogNotifier(logger apicore.Logger) *LogNotifier {
	return &LogNotifier{logger: apicore.LoggerOrNop(logger)}
}

// Notify implements apicore.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, err *apicore.Error) {
	fields := map[string]interface{}{
		"kind":       err.Kind.String(),
		"request_id": err.RequestID,
		"method":     err.Method,
		"path":       err.Path,
	}

	if err.Status > 0 {
		fields["status"] = err.Status
	}

	n.logger.Error(err.Message, fields)
}

// Publisher is the subset of *nats.Conn used for publishing.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes reported errors as JSON events on a subject.
type NATSNotifier struct {
	publisher Publisher
	subject   string
	logger    apicore.Logger
}

// NewNATSNotifier creates a notifier publishing to subject, or to
// apicore.errors when subject is empty.
func NewNATSNotifier(publisher Publisher, subject string, logger apicore.Logger) *NATSNotifier {
	if subject == "" {
		subject = constants.DefaultNATSSubject
	}

	return &NATSNotifier{
		publisher: publisher,
		subject:   subject,
		logger:    apicore.LoggerOrNop(logger),
	}
}

// Notify implements apicore.Notifier. Publish failures are logged only.
func (n *NATSNotifier) Notify(ctx context.Context, err *apicore.Error) {
	data, marshalErr := json.Marshal(NewEvent(err))
	if marshalErr != nil {
		n.logger.Warn("Failed to encode error event", map[string]interface{}{"error": marshalErr.Error()})

		return
	}

	publishErr := n.publisher.Publish(n.subject, data)
	if publishErr != nil {
		n.logger.Warn("Failed to publish error event", map[string]interface{}{
			"subject": n.subject,
			"error":   publishErr.Error(),
		})
	}
}

// Multi fans an error out to several notifiers in order.
type Multi []apicore.Notifier

// Notify implements apicore.Notifier.
func (m Multi) Notify(ctx context.Context, err *apicore.Error) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, err)
		}
	}
}
