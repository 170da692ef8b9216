package notification

import (
	"context"
	"log/slog"
)

const (
	// KindAuditDegraded reports an auth attempt whose audit record was lost.
	KindAuditDegraded = "audit_degraded"
)

// Message describes an operator-facing signal.
type Message struct {
	Kind    string
	Subject string
	Body    string
}

// Notifier delivers signals to operators.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes signals to the structured logger at warn level.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Warn("operator notification",
		slog.String("kind", message.Kind),
		slog.String("subject", message.Subject),
		slog.String("body", message.Body),
	)
	return nil
}
