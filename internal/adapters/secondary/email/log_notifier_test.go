package email

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/mocks"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

func newBufferedLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogNotifier_Notify(t *testing.T) {
	userID := uuid.New()
	params := ports.NotificationParams{
		RecipientUserID: userID,
		Subject:         "Ticket assigned",
		TicketID:        12,
	}

	t.Run("logs the message for an active user", func(t *testing.T) {
		var buf bytes.Buffer
		users := mocks.NewMockUserRepository()
		users.On("GetByID", mock.Anything, userID).Return(&domain.User{
			ID: userID, FullName: "Ada Agent", Email: "ada@example.com", IsActive: true,
		}, nil)

		NewLogNotifier(users, newBufferedLogger(&buf)).Notify(context.Background(), params)

		out := buf.String()
		assert.Contains(t, out, "notification sent")
		assert.Contains(t, out, "ada@example.com")
		assert.Contains(t, out, "ticket_id=12")
		users.AssertExpectations(t)
	})

	t.Run("skips inactive users", func(t *testing.T) {
		var buf bytes.Buffer
		users := mocks.NewMockUserRepository()
		users.On("GetByID", mock.Anything, userID).Return(&domain.User{ID: userID, IsActive: false}, nil)

		NewLogNotifier(users, newBufferedLogger(&buf)).Notify(context.Background(), params)

		assert.NotContains(t, buf.String(), "notification sent")
	})

	t.Run("lookup failure is logged", func(t *testing.T) {
		var buf bytes.Buffer
		users := mocks.NewMockUserRepository()
		users.On("GetByID", mock.Anything, userID).Return(nil, apperrors.ErrUserNotFound)

		NewLogNotifier(users, newBufferedLogger(&buf)).Notify(context.Background(), params)

		assert.Contains(t, buf.String(), "failed to get user for notification")
	})

	t.Run("survives a cancelled request context", func(t *testing.T) {
		var buf bytes.Buffer
		users := mocks.NewMockUserRepository()
		users.On("GetByID", mock.MatchedBy(func(ctx context.Context) bool {
			return ctx.Err() == nil
		}), userID).Return(&domain.User{ID: userID, Email: "x@example.com", IsActive: true}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		NewLogNotifier(users, newBufferedLogger(&buf)).Notify(ctx, params)

		assert.Contains(t, buf.String(), "notification sent")
	})
}
