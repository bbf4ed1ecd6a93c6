package services

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/huangang/thesisdesk/internal/listing"
	"github.com/huangang/thesisdesk/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAnnouncementService_CRUD(t *testing.T) {
	db := openTestDB(t)
	hub := &recordingRevalidator{}
	svc := NewAnnouncementService(db, hub)
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	ctx := context.Background()
	staff := createUser(t, db, models.RoleStaff, "Alan", "Turing")

	laterToday := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	res, err := svc.Create(ctx, staff.ID, AnnouncementRequest{
		Title: "  Defense week ", Content: "<p>Schedules are out.</p>",
		Files: []string{"files/a.pdf", "", "files/a.pdf", "files/b.pdf"}, ExpiresAt: &laterToday,
	})
	if err != nil || !res.Success {
		t.Fatalf("Create() = %+v, %v", res, err)
	}
	a := res.Data
	if a.Title != "Defense week" {
		t.Errorf("Title = %q, expected trimmed title", a.Title)
	}
	if got := a.FileRefs(); !reflect.DeepEqual(got, []string{"files/a.pdf", "files/b.pdf"}) {
		t.Errorf("FileRefs() = %v", got)
	}
	if a.Creator == nil || a.Creator.ID != staff.ID {
		t.Errorf("Creator = %+v, expected preloaded creator", a.Creator)
	}

	res, err = svc.Update(ctx, a.ID, AnnouncementRequest{Title: "Defense week (updated)", Content: "<p>Moved.</p>"})
	if err != nil || !res.Success {
		t.Fatalf("Update() = %+v, %v", res, err)
	}
	if res.Data.Content != "<p>Moved.</p>" || res.Data.ExpiresAt != nil || len(res.Data.FileRefs()) != 0 {
		t.Errorf("updated = %+v", res.Data)
	}

	res, _ = svc.Update(ctx, "missing", AnnouncementRequest{Title: "Title", Content: "x"})
	if res.Success || res.Error != MsgAnnouncementNotFound {
		t.Errorf("update missing = %+v, expected %q", res, MsgAnnouncementNotFound)
	}

	page, err := svc.List(ctx, staff.ID, listing.NewParams())
	if err != nil || page.Total != 1 {
		t.Fatalf("List(creator) = %+v, %v", page, err)
	}
	page, err = svc.List(ctx, "someone-else", listing.NewParams())
	if err != nil || page.Total != 0 {
		t.Errorf("List(other creator) total = %d, expected 0", page.Total)
	}

	res, err = svc.Delete(ctx, a.ID)
	if err != nil || !res.Success || res.Message != MsgAnnouncementDeleted {
		t.Fatalf("Delete() = %+v, %v", res, err)
	}
	res, _ = svc.Delete(ctx, a.ID)
	if res.Success || res.Error != MsgAnnouncementNotFound {
		t.Errorf("second delete = %+v, expected %q", res, MsgAnnouncementNotFound)
	}

	expected := []string{"announcements:created", "announcements:updated", "announcements:deleted"}
	if got := hub.tags(); !reflect.DeepEqual(got, expected) {
		t.Errorf("revalidations = %v, expected %v", got, expected)
	}
}

func TestAnnouncementService_Validation(t *testing.T) {
	db := openTestDB(t)
	svc := NewAnnouncementService(db, nil)
	svc.now = fixedClock(time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC))
	yesterday := time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name string
		req  AnnouncementRequest
	}{
		{"missing title", AnnouncementRequest{Content: "x"}},
		{"missing content", AnnouncementRequest{Title: "Title"}},
		{"short title", AnnouncementRequest{Title: " ab ", Content: "x"}},
		{"expired", AnnouncementRequest{Title: "Title", Content: "x", ExpiresAt: &yesterday}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), "", tt.req); !IsValidation(err) {
				t.Errorf("Create() error = %v, expected validation error", err)
			}
		})
	}

	var n int64
	db.Model(&models.Announcement{}).Count(&n)
	if n != 0 {
		t.Errorf("announcements = %d, expected none stored", n)
	}
}
