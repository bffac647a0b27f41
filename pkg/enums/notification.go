package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrder  NotificationType = "order"
	NotificationTypeOffer  NotificationType = "offer"
	NotificationTypeSystem NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypeOffer,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationAudience separates customer inboxes from the shared admin inbox.
type NotificationAudience string

const (
	NotificationAudienceUser  NotificationAudience = "user"
	NotificationAudienceAdmin NotificationAudience = "admin"
)

// IsValid reports whether the audience is known.
func (a NotificationAudience) IsValid() bool {
	return a == NotificationAudienceUser || a == NotificationAudienceAdmin
}
