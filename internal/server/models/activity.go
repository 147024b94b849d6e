package models

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Activity actions written to the audit log.
const (
	ActionProductCreated = "PRODUCT_CREATED"
	ActionProductUpdated = "PRODUCT_UPDATED"
	ActionProductDeleted = "PRODUCT_DELETED"
	ActionProfileUpdated = "PROFILE_UPDATED"
	ActionUserDeleted    = "USER_DELETED"
)

// ActivityLog is one audit row.
type ActivityLog struct {
	ID          int64
	Action      string
	Entity      string
	EntityID    string
	EntityTitle string
	ActorEmail  string
	Severity    Severity
	Detail      string
	CreatedAt   time.Time
}
