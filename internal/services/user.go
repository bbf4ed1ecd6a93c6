package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/huangang/thesisdesk/internal/listing"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
	"gorm.io/gorm"
)

const (
	MsgUserExists       = "User already exists."
	MsgEmailInUse       = "Email is already in use."
	MsgUserCreated      = "User successfully created."
	MsgUserUpdated      = "User successfully updated."
	MsgUserDeleted      = "User successfully deleted."
	MsgUserNotFound     = "User not found."
	MsgCannotDeleteSelf = "You cannot delete your own account."
	MsgCreateUserFailed = "Failed to create user."
	MsgUpdateUserFailed = "Failed to update user."
	MsgDeleteUserFailed = "Failed to delete user."
)

type UserResult = response.Result[*models.User]

type CreateUserRequest struct {
	Role      models.Role `json:"role" binding:"required,role"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Image     string      `json:"image"`
}

// UpdateUserRequest carries the editable fields of a user. Empty optional
// strings clear the column.
type UpdateUserRequest struct {
	IDNumber    string `json:"idNumber"`
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

var userListSpec = &listing.Spec{
	Fields: map[string]string{
		"id":            "id",
		"role":          "role",
		"firstName":     "first_name",
		"middleName":    "middle_name",
		"lastName":      "last_name",
		"email":         "email",
		"studentId":     "student_id",
		"staffId":       "staff_id",
		"phoneNumber":   "phone_number",
		"image":         "image",
		"emailVerified": "email_verified",
		"authType":      "auth_type",
		"lastLogin":     "last_login",
		"createdAt":     "created_at",
		"updatedAt":     "updated_at",
	},
	DateFields: map[string]bool{
		"emailVerified": true,
		"lastLogin":     true,
		"createdAt":     true,
		"updatedAt":     true,
	},
	Search: listing.SearchColumns("student_id", "staff_id", "first_name", "last_name", "email"),
}

type UserService struct {
	db  *gorm.DB
	hub Revalidator
	now func() time.Time
}

func NewUserService(db *gorm.DB, hub Revalidator) *UserService {
	return &UserService{db: db, hub: hub, now: time.Now}
}

// List pages through users. roles, when given, restricts the result.
func (s *UserService) List(ctx context.Context, p listing.Params, roles ...models.Role) (*listing.Page[models.User], error) {
	var scopes []func(*gorm.DB) *gorm.DB
	if len(roles) > 0 {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("role IN ?", roles) })
	}
	return listing.List[models.User](ctx, s.db, userListSpec, p, scopes...)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// DefaultAvatar is the generated initials avatar for a user without an image.
func DefaultAvatar(firstName, lastName string) string {
	return "https://api.dicebear.com/9.x/initials/svg?seed=" + url.QueryEscape(firstName+" "+lastName)
}

// Create adds a user without an external account. The e-mail is marked verified.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (UserResult, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	if err := requireFields("firstName", req.FirstName, "lastName", req.LastName, "email", req.Email); err != nil {
		return UserResult{}, err
	}
	if !req.Role.Valid() {
		return UserResult{}, invalidf("Invalid role %q.", req.Role)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		logger.Error().Err(err).Str("email", req.Email).Msg("check user email failed")
		return response.Fail[*models.User](MsgCreateUserFailed), nil
	}
	if existing > 0 {
		return response.Fail[*models.User](MsgUserExists), nil
	}

	image := strings.TrimSpace(req.Image)
	if image == "" {
		image = DefaultAvatar(req.FirstName, req.LastName)
	}
	now := s.now()
	user := &models.User{
		Role:          req.Role,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Image:         &image,
		EmailVerified: &now,
		AuthType:      models.AuthTypeLocal,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Fail[*models.User](MsgUserExists), nil
		}
		logger.Error().Err(err).Str("email", req.Email).Msg("create user failed")
		return response.Fail[*models.User](MsgCreateUserFailed), nil
	}

	s.revalidate(TagUsers, "created", user.ID)
	return response.Ok(user, MsgUserCreated), nil
}

// Update overwrites the editable fields. The id number is stored as student_id
// for students and staff_id for everyone else.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (UserResult, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	if err := requireFields("id", id, "firstName", req.FirstName, "lastName", req.LastName, "email", req.Email); err != nil {
		return UserResult{}, err
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.FailError[*models.User](MsgUserNotFound), nil
		}
		logger.Error().Err(err).Str("user_id", id).Msg("load user failed")
		return response.FailError[*models.User](MsgUpdateUserFailed), nil
	}

	updates := map[string]interface{}{
		"first_name":   req.FirstName,
		"middle_name":  nullable(req.MiddleName),
		"last_name":    req.LastName,
		"email":        req.Email,
		"phone_number": nullable(req.PhoneNumber),
		"updated_at":   s.now(),
	}
	updates[idNumberColumn(user.Role)] = nullable(req.IDNumber)

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.FailError[*models.User](MsgEmailInUse), nil
		}
		logger.Error().Err(err).Str("user_id", id).Msg("update user failed")
		return response.FailError[*models.User](MsgUpdateUserFailed), nil
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		updated = user
	}
	s.revalidate(TagUsers, "updated", id)
	return response.Ok(updated, MsgUserUpdated), nil
}

// Delete removes a user together with their advisee records, accounts and
// refresh tokens. Announcements they created are kept without a creator.
func (s *UserService) Delete(ctx context.Context, actorID, id string) (UserResult, error) {
	if err := requireFields("id", id); err != nil {
		return UserResult{}, err
	}
	if id == actorID {
		return response.Fail[*models.User](MsgCannotDeleteSelf), nil
	}

	var (
		notFound        bool
		adviseesDeleted int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound = true
				return nil
			}
			return err
		}

		owned := tx.Model(&models.Advisee{}).Select("id").Where("adviser_id = ? OR student_id = ?", id, id)
		if err := tx.Where("member_id = ? OR advisee_id IN (?)", id, owned).Delete(&models.AdviseeMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("adviser_id = ? OR student_id = ?", id, id).Delete(&models.Advisee{})
		if res.Error != nil {
			return res.Error
		}
		adviseesDeleted = res.RowsAffected

		if err := tx.Where("user_id = ?", id).Delete(&models.Account{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Announcement{}).Where("creator_id = ?", id).Update("creator_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		logger.Error().Err(err).Str("user_id", id).Msg("delete user failed")
		return response.FailError[*models.User](MsgDeleteUserFailed), nil
	}
	if notFound {
		return response.FailError[*models.User](MsgUserNotFound), nil
	}

	s.revalidate(TagUsers, "deleted", id)
	if adviseesDeleted > 0 {
		s.revalidate(TagAdvisees, "deleted", "")
	}
	return response.Ok[*models.User](nil, MsgUserDeleted), nil
}

func (s *UserService) revalidate(tag, action, id string) {
	if s.hub != nil {
		s.hub.Revalidate(tag, action, id)
	}
}

func idNumberColumn(role models.Role) string {
	if role == models.RoleStudent {
		return "student_id"
	}
	return "staff_id"
}

// nullable maps a blank string to SQL NULL.
func nullable(s string) interface{} {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
