// Package storage is the only reader and writer of ProjectFlow entities.
// It resolves user joins on read and leaves side effects such as activity
// records to its callers.
package storage

import (
	"context"
	"time"

	"github.com/hugh/projectflow/internal/database/models"
)

// DefaultActivityLimit is used when a caller asks for a non-positive limit.
const DefaultActivityLimit = 20

type Storage interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	UpdateUserSubscription(ctx context.Context, userID string, in SubscriptionUpdate) (*models.User, error)
	SaveUserGoogleConfig(ctx context.Context, userID string, cfg *models.GoogleAPIConfig) error
	GetUserGoogleConfig(ctx context.Context, userID string) (*models.GoogleAPIConfig, error)

	CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetUserProjects(ctx context.Context, userID string) ([]models.Project, error)
	UpdateProject(ctx context.Context, id string, in ProjectUpdate) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	GetProjectGoogleConfig(ctx context.Context, projectID string) (*models.GoogleAPIConfig, error)
	GetInheritableGoogleConfig(ctx context.Context, userID string) (*models.GoogleAPIConfig, string, error)

	AddProjectMember(ctx context.Context, projectID, userID string, role models.Role) (*models.ProjectMember, error)
	EnsureProjectMember(ctx context.Context, projectID, userID string, role models.Role) (*models.ProjectMember, bool, error)
	GetProjectMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error)
	GetUserProjectRole(ctx context.Context, projectID, userID string) (*models.ProjectMember, error)
	RemoveProjectMember(ctx context.Context, projectID, userID string) error

	CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetProjectTasks(ctx context.Context, projectID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, in TaskUpdate) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error)
	GetTaskComments(ctx context.Context, taskID string) ([]models.Comment, error)

	CreateActivity(ctx context.Context, in CreateActivityInput) (*models.Activity, error)
	GetProjectActivities(ctx context.Context, projectID string, limit int) ([]models.Activity, error)

	CreateAiSuggestion(ctx context.Context, in CreateSuggestionInput) (*models.AiSuggestion, error)
	GetAiSuggestion(ctx context.Context, id string) (*models.AiSuggestion, error)
	GetProjectAiSuggestions(ctx context.Context, projectID string) ([]models.AiSuggestion, error)
	UpdateAiSuggestion(ctx context.Context, id string, in SuggestionUpdate) (*models.AiSuggestion, error)

	CreateInvitation(ctx context.Context, in CreateInvitationInput) (*models.Invitation, error)
	GetInvitation(ctx context.Context, id string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID, userID string) (*models.Invitation, *models.ProjectMember, error)

	GetUserUsage(ctx context.Context, userID, month string) (*models.UsageTracking, error)
	UpdateUsage(ctx context.Context, userID, month string, in UsageUpdate) (*models.UsageTracking, error)
	IncrementUsage(ctx context.Context, userID, month string, in UsageDelta) error
	GetSubscriptionPlans(ctx context.Context) []models.SubscriptionPlan

	ExportProject(ctx context.Context, projectID string) (*models.ProjectDocument, error)
	ImportProject(ctx context.Context, doc *models.ProjectDocument) error
}

// Sealer encrypts credential bundles before they reach the database.
type Sealer interface {
	Seal(v any) (string, error)
	Open(sealed string, v any) error
}

type SubscriptionUpdate struct {
	Tier      models.SubscriptionTier
	Status    string
	Expiry    *time.Time
	Reference string
}

type CreateProjectInput struct {
	Name            string
	Description     string
	OwnerID         string
	Color           string
	AllowedEmails   []string
	GoogleAPIConfig *models.GoogleAPIConfig
}

type ProjectUpdate struct {
	Name          *string
	Description   *string
	Color         *string
	DriveFileID   *string
	AllowedEmails []string
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.Priority
	ProjectID   string
	AssigneeID  *string
	CreatedByID string
	DueDate     *time.Time
	Progress    int
	Position    int
}

// TaskUpdate is a partial update: nil fields are left untouched. An empty
// AssigneeID unassigns the task; ClearDueDate removes the due date.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	Priority     *models.Priority
	AssigneeID   *string
	DueDate      *time.Time
	ClearDueDate bool
	Progress     *int
	Position     *int
}

type CreateCommentInput struct {
	Content     string
	TaskID      string
	AuthorID    string
	Mentions    []string
	Attachments []string
	TaskLinks   []string
}

type CreateActivityInput struct {
	Type        string
	Description string
	ProjectID   string
	UserID      string
	EntityID    string
	Metadata    models.Metadata
}

type CreateSuggestionInput struct {
	Type        string
	Title       string
	Description string
	ProjectID   string
	Priority    models.Priority
}

type SuggestionUpdate struct {
	Applied   *bool
	Dismissed bool
}

type CreateInvitationInput struct {
	ProjectID   string
	Email       string
	Role        models.Role
	InviterName string
}

type UsageUpdate struct {
	GoogleDriveRequests *int
	GeminiRequests      *int
	ProjectsCreated     *int
	StorageUsed         *int64
}

type UsageDelta struct {
	GoogleDriveRequests int
	GeminiRequests      int
	ProjectsCreated     int
	StorageUsed         int64
}

// Month formats t as the usage-tracking key.
func Month(t time.Time) string {
	return t.UTC().Format("2006-01")
}
