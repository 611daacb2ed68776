package models

import "time"

// Activity types written by the route handlers.
const (
	ActivityProjectCreated    = "project_created"
	ActivityMemberAdded       = "member_added"
	ActivityMemberJoined      = "member_joined"
	ActivityMemberRemoved     = "member_removed"
	ActivityTaskCreated       = "task_created"
	ActivityTaskStatusChanged = "task_status_changed"
	ActivityTaskDeleted       = "task_deleted"
	ActivityCommentAdded      = "comment_added"
)

// Activity is an append-only audit entry.
type Activity struct {
	Base
	Type        string    `gorm:"not null;index" json:"type"`
	Description string    `json:"description"`
	ProjectID   string    `gorm:"type:varchar(64);not null;index" json:"projectId"`
	UserID      string    `gorm:"type:varchar(64)" json:"userId,omitempty"`
	EntityID    string    `gorm:"type:varchar(255)" json:"entityId,omitempty"`
	Metadata    Metadata  `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`

	User *User `gorm:"-" json:"user,omitempty"`
}

func (Activity) TableName() string {
	return "activities"
}

type AiSuggestion struct {
	Base
	Type        string     `gorm:"not null" json:"type"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	ProjectID   string     `gorm:"type:varchar(64);not null;index" json:"projectId"`
	Priority    Priority   `gorm:"default:'medium'" json:"priority"`
	Applied     bool       `gorm:"default:false" json:"applied"`
	DismissedAt *time.Time `json:"dismissedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (AiSuggestion) TableName() string {
	return "ai_suggestions"
}
