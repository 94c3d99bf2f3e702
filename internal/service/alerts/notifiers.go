package alerts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/models"
)

// Fanout sends each notification to every notifier and joins their failures.
type Fanout []Notifier

// Send delivers to all notifiers even when one fails.
func (f Fanout) Send(ctx context.Context, n models.Notification) error {
	var errs []error
	for i, notifier := range f {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the log. It is the fallback when no
// delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the notification.
func (l *LogNotifier) Send(_ context.Context, n models.Notification) error {
	l.logger.Warn(n.Subject, zap.String("sku", n.SKU), zap.Int64("stock", n.Stock), zap.String("body", n.Body))
	return nil
}
