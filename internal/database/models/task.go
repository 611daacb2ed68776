package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Task struct {
	Base
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `gorm:"not null;default:'todo';index" json:"status"`
	Priority    Priority   `gorm:"not null;default:'medium'" json:"priority"`
	ProjectID   string     `gorm:"type:varchar(64);not null;index" json:"projectId"`
	AssigneeID  *string    `gorm:"type:varchar(64)" json:"assigneeId,omitempty"`
	CreatedByID string     `gorm:"type:varchar(64);not null" json:"createdById"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Progress    int        `gorm:"default:0" json:"progress"`
	Position    int        `gorm:"default:0" json:"position"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Comments []Comment `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`

	// Joined on read.
	Assignee  *User `gorm:"-" json:"assignee,omitempty"`
	CreatedBy *User `gorm:"-" json:"createdBy,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// Overdue reports whether an unfinished task is past its due date.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != TaskStatusDone && t.DueDate.Before(now)
}

type Comment struct {
	Base
	Content     string     `gorm:"type:text;not null" json:"content"`
	TaskID      string     `gorm:"type:varchar(64);not null;index" json:"taskId"`
	AuthorID    string     `gorm:"type:varchar(64);not null" json:"authorId"`
	Mentions    StringList `gorm:"type:text" json:"mentions"`
	Attachments StringList `gorm:"type:text" json:"attachments"`
	TaskLinks   StringList `gorm:"type:text" json:"taskLinks"`
	CreatedAt   time.Time  `json:"createdAt"`

	Author *User `gorm:"-" json:"author,omitempty"`
}

func (Comment) TableName() string {
	return "comments"
}
