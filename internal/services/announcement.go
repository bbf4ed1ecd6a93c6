package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/huangang/thesisdesk/internal/listing"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
	"gorm.io/gorm"
)

const (
	MsgAnnouncementCreated      = "Announcement successfully created."
	MsgAnnouncementUpdated      = "Announcement successfully updated."
	MsgAnnouncementDeleted      = "Announcement successfully deleted."
	MsgAnnouncementNotFound     = "Announcement not found."
	MsgCreateAnnouncementFailed = "Failed to create announcement."
	MsgUpdateAnnouncementFailed = "Failed to update announcement."
	MsgDeleteAnnouncementFailed = "Failed to delete announcement."

	minAnnouncementTitle = 3
)

type AnnouncementResult = response.Result[*models.Announcement]

type AnnouncementRequest struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Files     []string   `json:"files"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

var announcementListSpec = &listing.Spec{
	Fields: map[string]string{
		"id":        "id",
		"title":     "title",
		"creatorId": "creator_id",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"expiresAt": "expires_at",
	},
	DateFields: map[string]bool{"createdAt": true, "updatedAt": true, "expiresAt": true},
	Search:     listing.SearchColumns("title", "content"),
	Preloads:   []string{"Creator"},
}

type AnnouncementService struct {
	db  *gorm.DB
	hub Revalidator
	now func() time.Time
}

func NewAnnouncementService(db *gorm.DB, hub Revalidator) *AnnouncementService {
	return &AnnouncementService{db: db, hub: hub, now: time.Now}
}

// List pages through announcements, optionally only those of creatorID.
func (s *AnnouncementService) List(ctx context.Context, creatorID string, p listing.Params) (*listing.Page[models.Announcement], error) {
	var scopes []func(*gorm.DB) *gorm.DB
	if creatorID != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("creator_id = ?", creatorID) })
	}
	return listing.List[models.Announcement](ctx, s.db, announcementListSpec, p, scopes...)
}

func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	var a models.Announcement
	if err := s.db.WithContext(ctx).Preload("Creator").Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AnnouncementService) validate(req *AnnouncementRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if err := requireFields("title", req.Title, "content", req.Content); err != nil {
		return err
	}
	if utf8.RuneCountInString(req.Title) < minAnnouncementTitle {
		return invalidf("Title must be at least %d characters long.", minAnnouncementTitle)
	}
	if req.ExpiresAt != nil {
		y, m, d := s.now().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, s.now().Location())
		if req.ExpiresAt.Before(today) {
			return invalidf("Expiry date cannot be in the past.")
		}
	}
	return nil
}

func (s *AnnouncementService) Create(ctx context.Context, creatorID string, req AnnouncementRequest) (AnnouncementResult, error) {
	if err := s.validate(&req); err != nil {
		return AnnouncementResult{}, err
	}

	a := &models.Announcement{
		Title:     req.Title,
		Content:   req.Content,
		ExpiresAt: req.ExpiresAt,
	}
	if creatorID != "" {
		a.CreatorID = &creatorID
	}
	if err := a.SetFiles(normalizeIDs(req.Files)); err != nil {
		return AnnouncementResult{}, invalidf("Invalid file references.")
	}

	if err := s.db.WithContext(ctx).Omit("Creator").Create(a).Error; err != nil {
		logger.Error().Err(err).Msg("create announcement failed")
		return response.Fail[*models.Announcement](MsgCreateAnnouncementFailed), nil
	}

	s.revalidate("created", a.ID)
	return response.Ok(s.reload(ctx, a), MsgAnnouncementCreated), nil
}

func (s *AnnouncementService) Update(ctx context.Context, id string, req AnnouncementRequest) (AnnouncementResult, error) {
	if err := requireFields("id", id); err != nil {
		return AnnouncementResult{}, err
	}
	if err := s.validate(&req); err != nil {
		return AnnouncementResult{}, err
	}

	var current models.Announcement
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.FailError[*models.Announcement](MsgAnnouncementNotFound), nil
		}
		logger.Error().Err(err).Str("announcement_id", id).Msg("load announcement failed")
		return response.FailError[*models.Announcement](MsgUpdateAnnouncementFailed), nil
	}

	if err := current.SetFiles(normalizeIDs(req.Files)); err != nil {
		return AnnouncementResult{}, invalidf("Invalid file references.")
	}
	err := s.db.WithContext(ctx).Model(&current).Updates(map[string]interface{}{
		"title":      req.Title,
		"content":    req.Content,
		"files":      current.Files,
		"expires_at": req.ExpiresAt,
		"updated_at": s.now(),
	}).Error
	if err != nil {
		logger.Error().Err(err).Str("announcement_id", id).Msg("update announcement failed")
		return response.FailError[*models.Announcement](MsgUpdateAnnouncementFailed), nil
	}

	s.revalidate("updated", id)
	return response.Ok(s.reload(ctx, &current), MsgAnnouncementUpdated), nil
}

func (s *AnnouncementService) Delete(ctx context.Context, id string) (AnnouncementResult, error) {
	if err := requireFields("id", id); err != nil {
		return AnnouncementResult{}, err
	}

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Announcement{})
	if res.Error != nil {
		logger.Error().Err(res.Error).Str("announcement_id", id).Msg("delete announcement failed")
		return response.FailError[*models.Announcement](MsgDeleteAnnouncementFailed), nil
	}
	if res.RowsAffected == 0 {
		return response.FailError[*models.Announcement](MsgAnnouncementNotFound), nil
	}

	s.revalidate("deleted", id)
	return response.Ok[*models.Announcement](nil, MsgAnnouncementDeleted), nil
}

func (s *AnnouncementService) reload(ctx context.Context, a *models.Announcement) *models.Announcement {
	loaded, err := s.Get(ctx, a.ID)
	if err != nil {
		return a
	}
	return loaded
}

func (s *AnnouncementService) revalidate(action, id string) {
	if s.hub != nil {
		s.hub.Revalidate(TagAnnouncements, action, id)
	}
}
