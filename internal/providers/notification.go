package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/store"
)

// StoreNotificationProvider persists a Notification record per delivery and
// publishes a notification.sent domain event, honoring the recipient's
// NotificationPreference (disabled types are silently skipped; an unknown
// type defaults to email per UserProfile.PreferenceFor). Grounded on the
// teacher's AlertPublisher interface (component wraps an external
// dependency — here, the store and bus rather than a webhook/Slack SDK,
// since no notification-delivery SDK the corpus actually uses applies to
// this domain's recipients).
type StoreNotificationProvider struct {
	users         store.Store[*domain.UserProfile]
	notifications store.Store[*domain.Notification]
	bus           *eventbus.Bus
	logger        *slog.Logger
}

func NewStoreNotificationProvider(
	users store.Store[*domain.UserProfile],
	notifications store.Store[*domain.Notification],
	bus *eventbus.Bus,
	logger *slog.Logger,
) *StoreNotificationProvider {
	return &StoreNotificationProvider{
		users:         users,
		notifications: notifications,
		bus:           bus,
		logger:        logger.With("component", "notification_provider"),
	}
}

func (p *StoreNotificationProvider) Send(ctx context.Context, userID string, notifType NotificationType, title, message string, ref EntityRef) error {
	user, err := p.users.GetOrFail(ctx, userID)
	if err != nil {
		p.logger.Warn("cannot notify unknown user", "user_id", userID, "type", notifType, "error", err)
		return err
	}

	pref := user.PreferenceFor(string(notifType))
	if !pref.Enabled {
		p.logger.Debug("notification suppressed by user preference", "user_id", userID, "type", notifType)
		return nil
	}

	notification := &domain.Notification{
		Base:             domain.Base{ID: uuid.NewString()},
		UserID:           userID,
		Type:             string(notifType),
		Title:            title,
		Message:          message,
		EntityTypeName:   ref.EntityType,
		EntityIDValue:    ref.EntityID,
		DeliveryChannels: pref.Channels,
	}
	if err := p.notifications.Put(ctx, notification); err != nil {
		p.logger.Error("failed to persist notification", "user_id", userID, "type", notifType, "error", err)
		return err
	}

	_ = p.bus.Publish(eventbus.New(eventbus.EventTypeNotificationSent, notification.ID, map[string]any{
		"userId":  userID,
		"type":    string(notifType),
		"title":   title,
		"sentAt":  time.Now().UTC(),
	}, eventbus.SourceOrchestrator))

	return nil
}
