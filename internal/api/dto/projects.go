package dto

import (
	"time"

	"github.com/hugh/projectflow/internal/api/validation"
	"github.com/hugh/projectflow/internal/database/models"
)

type CreateProjectRequest struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Description   string   `json:"description" validate:"max=2000"`
	Color         string   `json:"color" validate:"omitempty,hexcolor"`
	AllowedEmails []string `json:"allowedEmails" validate:"dive,email"`
}

type UpdateProjectRequest struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string  `json:"description" validate:"omitempty,max=2000"`
	Color         *string  `json:"color" validate:"omitempty,hexcolor"`
	AllowedEmails []string `json:"allowedEmails" validate:"omitempty,dive,email"`
}

type AddMemberRequest struct {
	Email string      `json:"email" validate:"required,email"`
	Role  models.Role `json:"role" validate:"omitempty,oneof=admin member"`
}

type ProjectStats struct {
	TotalTasks        int `json:"totalTasks"`
	TodoTasks         int `json:"todoTasks"`
	InProgressTasks   int `json:"inProgressTasks"`
	CompletedTasks    int `json:"completedTasks"`
	OverdueTasks      int `json:"overdueTasks"`
	TeamMembers       int `json:"teamMembers"`
	HighPriorityTasks int `json:"highPriorityTasks"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=500"`
	Description string     `json:"description" validate:"max=10000"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssigneeID  *string    `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate"`
	Progress    int        `json:"progress" validate:"min=0,max=100"`
	Position    int        `json:"position" validate:"min=0"`
}

func (r *CreateTaskRequest) Sanitize() {
	r.Title = validation.SanitizeString(r.Title)
	r.Description = validation.SanitizeString(r.Description)
}

// UpdateTaskRequest is a partial update; omitted fields are left alone and
// an explicit null dueDate clears it.
type UpdateTaskRequest struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=500"`
	Description *string      `json:"description" validate:"omitempty,max=10000"`
	Status      *string      `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    *string      `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssigneeID  *string      `json:"assigneeId"`
	DueDate     NullableTime `json:"dueDate"`
	Progress    *int         `json:"progress" validate:"omitempty,min=0,max=100"`
	Position    *int         `json:"position" validate:"omitempty,min=0"`
}

func (r *UpdateTaskRequest) Sanitize() {
	r.Title = sanitizePtr(r.Title)
	r.Description = sanitizePtr(r.Description)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := validation.SanitizeString(*s)
	return &clean
}

type CreateCommentRequest struct {
	Content     string   `json:"content" validate:"required,max=5000"`
	Mentions    []string `json:"mentions"`
	Attachments []string `json:"attachments"`
	TaskLinks   []string `json:"taskLinks"`
}

func (r *CreateCommentRequest) Sanitize() {
	r.Content = validation.SanitizeString(r.Content)
}

type DriveSyncResponse struct {
	Success     bool   `json:"success"`
	DriveFileID string `json:"driveFileId"`
}
