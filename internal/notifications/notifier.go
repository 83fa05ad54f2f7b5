package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/mvickers/tradepost-backend/pkg/logger"
)

// Notifier delivers a notification through an out-of-band channel such as
// email. Delivery is best effort; the in-app row is the durable record.
type Notifier interface {
	Send(ctx context.Context, userID uuid.UUID, title, message string) error
}

// LogNotifier writes deliveries to the structured log. Stands in until a
// real mail transport is wired.
type LogNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier builds a log-backed Notifier.
func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Send(ctx context.Context, userID uuid.UUID, title, message string) error {
	if n.logg == nil {
		return nil
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"title":   title,
	})
	n.logg.Info(logCtx, "notification dispatched")
	return nil
}
