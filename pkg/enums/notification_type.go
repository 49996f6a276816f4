package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderPlaced   NotificationType = "order_placed"
	NotificationTypeOrderReceived NotificationType = "order_received"
	NotificationTypeOrderUpdated  NotificationType = "order_updated"
	NotificationTypePaymentPaid   NotificationType = "payment_paid"
	NotificationTypeTokenReward   NotificationType = "token_reward"
	NotificationTypeSystem        NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPlaced,
	NotificationTypeOrderReceived,
	NotificationTypeOrderUpdated,
	NotificationTypePaymentPaid,
	NotificationTypeTokenReward,
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
