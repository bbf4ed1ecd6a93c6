package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/huangang/thesisdesk/internal/config"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/utils"
	"github.com/huangang/thesisdesk/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidAuthType     = errors.New("invalid auth type")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshRevoked      = errors.New("refresh token revoked")
	ErrRefreshExpired      = errors.New("refresh token expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrWrongPassword       = errors.New("incorrect old password")
	ErrExternalAccount     = errors.New("password is managed by the identity provider")
)

const (
	DefaultAdminEmail    = "admin@localhost"
	defaultAdminPassword = "admin"
	providerGoogle       = "google"
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	google      GoogleVerifier
	jwtConfig   *config.JWTConfig
	configSvc   *SystemConfigService
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, google GoogleVerifier) *AuthService {
	configSvc := NewSystemConfigService(db)
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(configSvc, &cfg.LDAP),
		google:      google,
		jwtConfig:   &cfg.JWT,
		configSvc:   configSvc,
		now:         time.Now,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"authType"` // local, ldap
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login authenticates with a local password or LDAP and issues tokens.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var (
		user *models.User
		err  error
	)

	switch req.AuthType {
	case "", models.AuthTypeLocal:
		user, err = s.localAuth(ctx, req.Email, req.Password)
	case models.AuthTypeLDAP:
		user, err = s.ldapAuth(ctx, req.Email, req.Password)
	default:
		return nil, ErrInvalidAuthType
	}
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, clientIP, userAgent)
}

// LoginGoogle signs in with a Google ID token. The Google account is linked to
// an existing user with the same e-mail; otherwise a STUDENT is created.
func (s *AuthService) LoginGoogle(ctx context.Context, idToken, clientIP, userAgent string) (*LoginResult, error) {
	if s.google == nil {
		return nil, ErrInvalidGoogleToken
	}
	profile, err := s.google.Verify(idToken)
	if err != nil {
		return nil, err
	}
	if profile.Subject == "" || profile.Email == "" {
		return nil, ErrInvalidGoogleToken
	}

	user, err := s.linkGoogleUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user, clientIP, userAgent)
}

func (s *AuthService) linkGoogleUser(ctx context.Context, profile *GoogleProfile) (*models.User, error) {
	email := NormalizeEmail(profile.Email)
	var user models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		err := tx.Preload("User").
			Where(models.Account{Provider: providerGoogle, ProviderAccountID: profile.Subject}).
			First(&account).Error
		if err == nil && account.User != nil {
			user = *account.User
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = newGoogleUser(profile, email, s.now())
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		return tx.Create(&models.Account{
			UserID:            user.ID,
			Provider:          providerGoogle,
			ProviderAccountID: profile.Subject,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func newGoogleUser(profile *GoogleProfile, email string, now time.Time) models.User {
	first, last := profile.GivenName, profile.FamilyName
	if first == "" && last == "" {
		first, last = splitName(profile.Name)
	}
	if first == "" {
		first = strings.SplitN(email, "@", 2)[0]
	}

	user := models.User{
		Role:          models.RoleStudent,
		FirstName:     first,
		LastName:      last,
		Email:         email,
		AuthType:      models.AuthTypeGoogle,
		EmailVerified: &now,
	}
	if profile.Picture != "" {
		picture := profile.Picture
		user.Image = &picture
	}
	return user
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, clientIP, userAgent string) (*LoginResult, error) {
	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()
	now := s.now()

	token, err := utils.GenerateToken(IdentityFor(user), accessHours)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpireAt := now.Add(time.Duration(refreshHours) * time.Hour)
	record := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   refreshExpireAt,
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("update last login failed")
	}
	user.LastLogin = &now

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		User:            user,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and points
// at the newly issued one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	var stored models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, ErrRefreshRevoked
	}
	now := s.now()
	if now.After(stored.ExpiresAt) {
		return nil, ErrRefreshExpired
	}

	user, err := s.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()

	newAccessToken, err := utils.GenerateToken(IdentityFor(user), accessHours)
	if err != nil {
		return nil, err
	}
	newRefreshToken, newRefreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newRefreshHash,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		// revoked_at IS NULL guards against two concurrent refreshes of one token
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshRevoked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:     newAccessToken,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
		User:            user,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", s.now()).Error
}

func (s *AuthService) getAccessTokenExpireHours() int {
	defaultHours := s.jwtConfig.ExpireHour
	if defaultHours <= 0 {
		defaultHours = 24
	}
	return s.configSvc.GetInt("auth_access_token_expire_hours", defaultHours)
}

func (s *AuthService) getRefreshTokenExpireHours() int {
	return s.configSvc.GetInt("auth_refresh_token_expire_hours", 720)
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND auth_type = ?", NormalizeEmail(email), models.AuthTypeLocal).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// ldapAuth verifies the credentials against the directory. The first LDAP
// login of an unknown e-mail creates a STUDENT.
func (s *AuthService) ldapAuth(ctx context.Context, username, password string) (*models.User, error) {
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("ldap authentication failed")
		return nil, ErrInvalidCredentials
	}

	email := ldapUser.Email
	if email == "" {
		email = NormalizeEmail(username)
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		now := s.now()
		user = models.User{
			Role:          models.RoleStudent,
			FirstName:     ldapUser.FirstName,
			LastName:      ldapUser.LastName,
			Email:         email,
			AuthType:      models.AuthTypeLDAP,
			EmailVerified: &now,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.AuthType != models.AuthTypeLDAP:
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists seeds admin@localhost / admin when no ADMIN exists.
func (s *AuthService) CreateAdminIfNotExists() error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := utils.HashPassword(defaultAdminPassword)
	if err != nil {
		return err
	}

	now := s.now()
	admin := models.User{
		Role:          models.RoleAdmin,
		FirstName:     "System",
		LastName:      "Administrator",
		Email:         DefaultAdminEmail,
		Password:      hashedPassword,
		AuthType:      models.AuthTypeLocal,
		EmailVerified: &now,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}
	logger.Warn().Str("email", DefaultAdminEmail).Msg("created default admin account, change its password")
	return nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.AuthType != models.AuthTypeLocal {
		return ErrExternalAccount
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return ErrWrongPassword
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password", hashedPassword).Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
