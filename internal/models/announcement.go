package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Announcement is a notice posted by staff. Files holds opaque file references.
type Announcement struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Files     datatypes.JSON `json:"files"`
	CreatorID *string        `gorm:"size:36;index" json:"creatorId"`
	Creator   *User          `gorm:"foreignKey:CreatorID;constraint:OnDelete:SET NULL" json:"creator,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	ExpiresAt *time.Time     `gorm:"index" json:"expiresAt"`
}

func (Announcement) TableName() string { return "announcements" }

func (a *Announcement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if len(a.Files) == 0 {
		a.Files = datatypes.JSON("[]")
	}
	return nil
}

// SetFiles stores refs as a JSON array; nil becomes [].
func (a *Announcement) SetFiles(refs []string) error {
	if refs == nil {
		refs = []string{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	a.Files = datatypes.JSON(raw)
	return nil
}

// FileRefs decodes the stored file references.
func (a *Announcement) FileRefs() []string {
	refs := []string{}
	if len(a.Files) == 0 {
		return refs
	}
	_ = json.Unmarshal(a.Files, &refs)
	return refs
}
