package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
)

type Invitation struct {
	Base
	ProjectID    string           `gorm:"type:varchar(64);not null;index" json:"projectId"`
	Email        string           `gorm:"not null;index" json:"email"`
	Role         Role             `gorm:"not null;default:'member'" json:"role"`
	InviterName  string           `json:"inviterName"`
	Status       InvitationStatus `gorm:"not null;default:'pending'" json:"status"`
	AcceptedByID string           `gorm:"type:varchar(64)" json:"acceptedById,omitempty"`
	AcceptedAt   *time.Time       `json:"acceptedAt,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

func (Invitation) TableName() string {
	return "invitations"
}
