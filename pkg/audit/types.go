package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"
	EventTypeAuthLogout      EventType = "auth.logout"
	EventTypeAuthRegister    EventType = "auth.register"

	// Invite lifecycle
	EventTypeInviteIssued   EventType = "invite.issued"
	EventTypeInviteRedeemed EventType = "invite.redeemed"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Admin events
	EventTypeAdminRoleChange   EventType = "admin.role_change"
	EventTypeAdminStatusChange EventType = "admin.status_change"

	// Configuration events
	EventTypeConfigCatalogReload EventType = "config.catalog_reload"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeUser       ResourceType = "user"
	ResourceTypeInvite     ResourceType = "invite"
	ResourceTypeSession    ResourceType = "session"
	ResourceTypePermission ResourceType = "permission"
	ResourceTypeRole       ResourceType = "role"
)

// Event is a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	// Subject
	TargetUserID *int64       `json:"target_user_id,omitempty"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// WithActor sets the acting user
func (e *Event) WithActor(id int64, username string) *Event {
	e.UserID = &id
	e.Username = username
	return e
}

// WithTarget sets the user acted upon
func (e *Event) WithTarget(id int64) *Event {
	e.TargetUserID = &id
	return e
}

// WithResource sets the resource acted upon
func (e *Event) WithResource(rt ResourceType, id string) *Event {
	e.ResourceType = rt
	e.ResourceID = id
	return e
}

// WithMessage sets the human-readable description
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithMetadata adds a metadata entry
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime  *time.Time
	EndTime    *time.Time
	UserID     *int64
	EventTypes []EventType
	Status     EventStatus

	Limit  int
	Offset int
}

// DefaultSearchLimit caps unbounded searches
const DefaultSearchLimit = 100

// MaxSearchLimit is the largest page a search returns
const MaxSearchLimit = 1000
