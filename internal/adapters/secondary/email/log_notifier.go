// Package email delivers ticket notifications. Message composition and
// SMTP delivery live outside this service; the notifier here records the
// outgoing message in the structured log.
package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

const lookupTimeout = 5 * time.Second

// LogNotifier resolves the recipient and logs the message it would send.
type LogNotifier struct {
	users  ports.UserRepository
	logger *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(users ports.UserRepository, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		users:  users,
		logger: logger.With("component", "email_notifier"),
	}
}

// Notify runs detached from the request, so it applies its own timeout.
func (n *LogNotifier) Notify(ctx context.Context, params ports.NotificationParams) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
	defer cancel()

	user, err := n.users.GetByID(ctx, params.RecipientUserID)
	if err != nil {
		n.logger.Error("failed to get user for notification",
			"user_id", params.RecipientUserID,
			"error", err,
		)
		return
	}
	if !user.IsActive {
		n.logger.Debug("skipping notification for inactive user", "user_id", user.ID)
		return
	}

	n.logger.Info("notification sent",
		"to_name", user.FullName,
		"to_email", user.Email,
		"subject", params.Subject,
		"ticket_id", params.TicketID,
	)
}
