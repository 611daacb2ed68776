package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/hugh/projectflow/internal/google"
)

// Task type names
const (
	TypeInvitationEmail = "email:invitation"
)

// InvitationEmailPayload carries the message and the inviter's Gmail token,
// sealed so it is never stored in Redis in the clear.
type InvitationEmailPayload struct {
	InvitationID string                 `json:"invitation_id"`
	Message      google.InvitationEmail `json:"message"`
	SealedToken  string                 `json:"sealed_token"`
}

func NewInvitationEmailTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvitationEmail, data), nil
}
