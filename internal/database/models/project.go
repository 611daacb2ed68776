package models

import (
	"strings"
	"time"
)

const DefaultProjectColor = "#7C3AED"

type Project struct {
	Base
	Name          string     `gorm:"not null" json:"name"`
	Description   string     `json:"description,omitempty"`
	OwnerID       string     `gorm:"type:varchar(64);index;not null" json:"ownerId"`
	Color         string     `json:"color"`
	DriveFileID   string     `json:"driveFileId"`
	AllowedEmails StringList `gorm:"type:text" json:"allowedEmails"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// GoogleAPIConfig is the owner's bundle, sealed at rest in GoogleConfigSealed.
	GoogleAPIConfig    *GoogleAPIConfig `gorm:"-" json:"-"`
	GoogleConfigSealed string           `gorm:"type:text" json:"-"`

	// Owned rows, removed by the database when the project is deleted.
	Members       []ProjectMember `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Tasks         []Task          `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Activities    []Activity      `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	AiSuggestions []AiSuggestion  `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Invitations   []Invitation    `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

// HasEmail reports whether email is on the project's allow list, ignoring
// case.
func (p *Project) HasEmail(email string) bool {
	email = strings.TrimSpace(email)
	for _, e := range p.AllowedEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Elevated roles may change a project's membership.
func (r Role) Elevated() bool {
	return r == RoleOwner || r == RoleAdmin
}

type ProjectMember struct {
	Base
	ProjectID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_project_members_project_user" json:"projectId"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_project_members_project_user;index" json:"userId"`
	Role      Role      `gorm:"not null;default:'member'" json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`

	User *User `gorm:"-" json:"user,omitempty"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}
