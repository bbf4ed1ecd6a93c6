package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdviseeStatus string

const (
	AdviseePending  AdviseeStatus = "PENDING"
	AdviseeActive   AdviseeStatus = "ACTIVE"
	AdviseeInactive AdviseeStatus = "INACTIVE"
)

func (s AdviseeStatus) Valid() bool {
	switch s {
	case AdviseePending, AdviseeActive, AdviseeInactive:
		return true
	}
	return false
}

// CanTransition reports whether an advisee in state s may move to next.
// Writing the current state again is allowed and only refreshes updatedAt.
// INACTIVE is terminal: a new request has to be created instead.
func (s AdviseeStatus) CanTransition(next AdviseeStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case AdviseePending:
		return next == AdviseeActive || next == AdviseeInactive
	case AdviseeActive:
		return next == AdviseeInactive
	}
	return false
}

type MemberType string

const MemberTypeMember MemberType = "MEMBER"

// Advisee links one adviser to one student.
type Advisee struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	AdviserID string          `gorm:"size:36;not null;index" json:"adviserId"`
	StudentID string          `gorm:"size:36;not null;index:idx_advisee_student_status" json:"studentId"`
	Status    AdviseeStatus   `gorm:"size:20;not null;default:PENDING;index:idx_advisee_student_status" json:"status"`
	Adviser   *User           `gorm:"foreignKey:AdviserID;constraint:OnDelete:CASCADE" json:"adviser,omitempty"`
	Student   *User           `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Members   []AdviseeMember `gorm:"foreignKey:AdviseeID;constraint:OnDelete:CASCADE" json:"members"`
	CreatedAt time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Advisee) TableName() string { return "advisees" }

func (a *Advisee) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AdviseeMember attaches a co-adviser or panel member to an advisee.
type AdviseeMember struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	AdviseeID string     `gorm:"size:36;not null;index" json:"adviseeId"`
	MemberID  string     `gorm:"size:36;not null;index" json:"memberId"`
	Type      MemberType `gorm:"size:20;not null;default:MEMBER" json:"type"`
	Member    *User      `gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE" json:"member,omitempty"`
}

func (AdviseeMember) TableName() string { return "advisee_members" }

func (m *AdviseeMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Type == "" {
		m.Type = MemberTypeMember
	}
	return nil
}
