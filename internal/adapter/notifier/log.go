package notifier

import (
	"context"
	"log/slog"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

var _ port.Notifier = (*LogNotifier)(nil)

// LogNotifier writes events to the log. Used when no webhook is configured.
type LogNotifier struct {
	currency domain.Currency
	logger   *slog.Logger
}

func NewLogNotifier(currency domain.Currency, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{currency: currency, logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event domain.Event) error {
	n.logger.InfoContext(ctx, "notification",
		"account_id", event.AccountID,
		"event_type", event.Type,
		"transaction_id", event.Payload.TransactionID,
		"message", Message(n.currency, event),
	)
	return nil
}
