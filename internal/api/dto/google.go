package dto

import "time"

type CreateTaskListRequest struct {
	Title string `json:"title" validate:"required,max=1024"`
}

type CreateGoogleTaskRequest struct {
	Title string     `json:"title" validate:"required"`
	Notes string     `json:"notes"`
	Due   *time.Time `json:"due"`
}

type CreateEventRequest struct {
	Summary     string    `json:"summary" validate:"required"`
	Description string    `json:"description"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required,gtfield=Start"`
	Attendees   []string  `json:"attendees" validate:"dive,email"`
}

type MilestoneRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
}

type MeetingRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required,gtfield=Start"`
	Attendees   []string  `json:"attendees" validate:"dive,email"`
}

type SyncGoogleTasksRequest struct {
	TaskListID string `json:"taskListId"`
}

type SyncGoogleTasksResponse struct {
	Success    bool   `json:"success"`
	TaskListID string `json:"taskListId"`
	Synced     int    `json:"synced"`
}
