package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
	"gorm.io/gorm"
)

const (
	MsgProfileUpdated      = "Profile updated successfully."
	MsgUpdateProfileFailed = "Failed to update profile."
)

type UpdateProfileRequest struct {
	IDNumber    string  `json:"idNumber"`
	FirstName   string  `json:"firstName"`
	MiddleName  *string `json:"middleName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// ProfileService lets the signed-in user edit their own record.
type ProfileService struct {
	db  *gorm.DB
	hub Revalidator
	now func() time.Time
}

func NewProfileService(db *gorm.DB, hub Revalidator) *ProfileService {
	return &ProfileService{db: db, hub: hub, now: time.Now}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update stores the profile of the session user. The id number goes to
// student_id for students and staff_id for staff, faculty and admins.
func (s *ProfileService) Update(ctx context.Context, session *Session, req UpdateProfileRequest) (UserResult, error) {
	if session == nil {
		return UserResult{}, ErrNotAuthorized
	}
	req.IDNumber = strings.TrimSpace(req.IDNumber)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	if err := requireFields("idNumber", req.IDNumber, "firstName", req.FirstName, "lastName", req.LastName, "email", req.Email); err != nil {
		return UserResult{}, err
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return UserResult{}, invalidf("Invalid email.")
	}
	if !session.Role.Valid() {
		logger.Warn().Str("user_id", session.UserID).Str("role", string(session.Role)).Msg("profile update with unknown role")
		return response.Fail[*models.User](MsgUpdateProfileFailed), nil
	}

	updates := map[string]interface{}{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"email":      req.Email,
		"updated_at": s.now(),
	}
	updates[idNumberColumn(session.Role)] = req.IDNumber
	if req.MiddleName != nil {
		updates["middle_name"] = nullable(*req.MiddleName)
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = nullable(*req.PhoneNumber)
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", session.UserID).Updates(updates)
	if res.Error != nil || res.RowsAffected == 0 {
		if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			logger.Error().Err(res.Error).Str("user_id", session.UserID).Msg("update profile failed")
		}
		return response.Fail[*models.User](MsgUpdateProfileFailed), nil
	}

	user, err := s.Get(ctx, session.UserID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", session.UserID).Msg("reload profile failed")
	}
	if s.hub != nil {
		s.hub.Revalidate(TagProfile, "updated", session.UserID)
	}
	return response.Ok(user, MsgProfileUpdated), nil
}
