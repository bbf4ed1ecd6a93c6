package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleFaculty Role = "FACULTY"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// Roles lists every role in display order.
var Roles = []Role{RoleStudent, RoleFaculty, RoleStaff, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// IsAdviserRole reports whether r may own advisee records.
func (r Role) IsAdviserRole() bool {
	return r == RoleFaculty || r == RoleStaff || r == RoleAdmin
}

// Auth types
const (
	AuthTypeLocal  = "local"
	AuthTypeLDAP   = "ldap"
	AuthTypeGoogle = "google"
)

// User is the identity record shared by students, faculty, staff and admins.
type User struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Role          Role       `gorm:"size:20;not null;default:STUDENT;index" json:"role"`
	FirstName     string     `gorm:"size:100;not null" json:"firstName"`
	MiddleName    *string    `gorm:"size:100" json:"middleName"`
	LastName      string     `gorm:"size:100;not null;index" json:"lastName"`
	Email         string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	StudentID     *string    `gorm:"size:50;index" json:"studentId"`
	StaffID       *string    `gorm:"size:50;index" json:"staffId"`
	PhoneNumber   *string    `gorm:"size:50" json:"phoneNumber"`
	Image         *string    `gorm:"size:500" json:"image"`
	EmailVerified *time.Time `json:"emailVerified"`
	Password      string     `gorm:"size:255" json:"-"` // bcrypt hash, empty for LDAP and Google users
	AuthType      string     `gorm:"size:20;default:local" json:"authType"`
	LastLogin     *time.Time `json:"lastLogin"`
	CreatedAt     time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// FullName joins the name parts, skipping an empty middle name.
func (u *User) FullName() string {
	parts := []string{u.FirstName}
	if u.MiddleName != nil && *u.MiddleName != "" {
		parts = append(parts, *u.MiddleName)
	}
	parts = append(parts, u.LastName)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// IDNumber returns the institution id appropriate for the user's role.
func (u *User) IDNumber() *string {
	if u.Role == RoleStudent {
		return u.StudentID
	}
	return u.StaffID
}

// Account links a user to an external identity provider.
type Account struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	UserID            string    `gorm:"size:36;not null;index" json:"userId"`
	Provider          string    `gorm:"size:50;not null;uniqueIndex:idx_account_provider" json:"provider"`
	ProviderAccountID string    `gorm:"size:255;not null;uniqueIndex:idx_account_provider" json:"providerAccountId"`
	User              *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
