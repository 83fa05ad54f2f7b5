package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderPending    NotificationType = "order_pending"
	NotificationTypeOrderProcessing NotificationType = "order_processing"
	NotificationTypeOrderSucceeded  NotificationType = "order_succeeded"
	NotificationTypeOrderRefunded   NotificationType = "order_refunded"
	NotificationTypeOrderCancelled  NotificationType = "order_cancelled"
	NotificationTypeDiscountGranted NotificationType = "discount_granted"
	NotificationTypePayoutUpdate    NotificationType = "payout_update"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPending,
	NotificationTypeOrderProcessing,
	NotificationTypeOrderSucceeded,
	NotificationTypeOrderRefunded,
	NotificationTypeOrderCancelled,
	NotificationTypeDiscountGranted,
	NotificationTypePayoutUpdate,
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
