package domain

// Webhook object and aspect types as delivered by the activity source.
const (
	ObjectTypeActivity = "activity"

	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"
)

// WebhookEvent is a parsed activity-change notification.
type WebhookEvent struct {
	ObjectType string
	ObjectID   int64
	OwnerID    int64
	AspectType string
}
