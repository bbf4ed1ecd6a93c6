package services

import (
	"context"
	"errors"
	"testing"

	"github.com/huangang/thesisdesk/internal/config"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/utils"
	"gorm.io/gorm"
)

type fakeGoogle struct {
	profiles map[string]*GoogleProfile
}

func (g *fakeGoogle) Verify(idToken string) (*GoogleProfile, error) {
	if p, ok := g.profiles[idToken]; ok {
		return p, nil
	}
	return nil, ErrInvalidGoogleToken
}

func newAuthService(t *testing.T, google GoogleVerifier) (*AuthService, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	if err := models.Seed(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewAuthService(db, config.DefaultConfig(), google), db
}

func createLocalUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Role: models.RoleFaculty, FirstName: "Ada", LastName: "Lovelace", Email: email, Password: hash, AuthType: models.AuthTypeLocal}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestAuthService_Login(t *testing.T) {
	svc, db := newAuthService(t, nil)
	ctx := context.Background()
	user := createLocalUser(t, db, "ada@example.edu", "analytical")

	tests := []struct {
		name    string
		req     LoginRequest
		wantErr error
	}{
		{"valid", LoginRequest{Email: "ada@example.edu", Password: "analytical"}, nil},
		{"email case and spaces", LoginRequest{Email: "  ADA@example.edu ", Password: "analytical", AuthType: "local"}, nil},
		{"wrong password", LoginRequest{Email: "ada@example.edu", Password: "engine"}, ErrInvalidCredentials},
		{"unknown email", LoginRequest{Email: "who@example.edu", Password: "analytical"}, ErrInvalidCredentials},
		{"unknown auth type", LoginRequest{Email: "ada@example.edu", Password: "analytical", AuthType: "saml"}, ErrInvalidAuthType},
		{"ldap disabled", LoginRequest{Email: "ada@example.edu", Password: "analytical", AuthType: "ldap"}, ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(ctx, &tt.req, "127.0.0.1", "go-test")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, expected %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			claims, err := utils.ParseToken(res.AccessToken)
			if err != nil {
				t.Fatalf("ParseToken() error = %v", err)
			}
			if claims.UserID != user.ID || claims.Role != "FACULTY" {
				t.Errorf("claims = %+v, expected user %s FACULTY", claims.Identity, user.ID)
			}
			if res.RefreshToken == "" || res.User.LastLogin == nil {
				t.Errorf("result = %+v, expected refresh token and last login", res)
			}
		})
	}
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc, db := newAuthService(t, nil)
	ctx := context.Background()
	createLocalUser(t, db, "ada@example.edu", "analytical")

	login, err := svc.Login(ctx, &LoginRequest{Email: "ada@example.edu", Password: "analytical"}, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	refreshed, err := svc.Refresh(ctx, login.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("Refresh() should issue a new refresh token")
	}

	var old models.RefreshToken
	db.Where("token_hash = ?", hashRefreshToken(login.RefreshToken)).First(&old)
	if old.RevokedAt == nil || old.ReplacedByTokenID == nil {
		t.Errorf("old token = %+v, expected revoked and replaced", old)
	}

	if _, err := svc.Refresh(ctx, login.RefreshToken, "", ""); !errors.Is(err, ErrRefreshRevoked) {
		t.Errorf("reusing a rotated token: error = %v, expected ErrRefreshRevoked", err)
	}
	if _, err := svc.Refresh(ctx, "bogus", "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("unknown token: error = %v, expected ErrInvalidRefreshToken", err)
	}

	if err := svc.RevokeRefreshToken(ctx, refreshed.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}
	if _, err := svc.Refresh(ctx, refreshed.RefreshToken, "", ""); !errors.Is(err, ErrRefreshRevoked) {
		t.Errorf("after logout: error = %v, expected ErrRefreshRevoked", err)
	}
}

func TestAuthService_LoginGoogle(t *testing.T) {
	google := &fakeGoogle{profiles: map[string]*GoogleProfile{
		"new":    {Subject: "g-1", Email: "Grace@Example.edu", GivenName: "Grace", FamilyName: "Hopper", Picture: "https://example.edu/g.png"},
		"manual": {Subject: "g-2", Email: "ada@example.edu", Name: "Ada Lovelace"},
	}}
	svc, db := newAuthService(t, google)
	ctx := context.Background()
	manual := createLocalUser(t, db, "ada@example.edu", "analytical")

	res, err := svc.LoginGoogle(ctx, "new", "", "")
	if err != nil {
		t.Fatalf("LoginGoogle(new) error = %v", err)
	}
	u := res.User
	if u.Role != models.RoleStudent || u.Email != "grace@example.edu" || u.MiddleName != nil {
		t.Errorf("created user = %+v, expected STUDENT grace@example.edu without middle name", u)
	}
	if u.EmailVerified == nil || u.Image == nil || *u.Image != "https://example.edu/g.png" {
		t.Errorf("created user should be verified with the Google picture, got %+v", u)
	}

	again, err := svc.LoginGoogle(ctx, "new", "", "")
	if err != nil {
		t.Fatalf("second LoginGoogle(new) error = %v", err)
	}
	if again.User.ID != u.ID {
		t.Errorf("second login user = %s, expected %s", again.User.ID, u.ID)
	}

	linked, err := svc.LoginGoogle(ctx, "manual", "", "")
	if err != nil {
		t.Fatalf("LoginGoogle(manual) error = %v", err)
	}
	if linked.User.ID != manual.ID {
		t.Errorf("manual user should be linked, got new user %s", linked.User.ID)
	}

	var users, accounts int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.Account{}).Count(&accounts)
	if users != 2 || accounts != 2 {
		t.Errorf("users = %d, accounts = %d; expected 2 and 2", users, accounts)
	}

	if _, err := svc.LoginGoogle(ctx, "forged", "", ""); !errors.Is(err, ErrInvalidGoogleToken) {
		t.Errorf("forged token: error = %v, expected ErrInvalidGoogleToken", err)
	}
}

func TestAuthService_CreateAdminIfNotExists(t *testing.T) {
	svc, db := newAuthService(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.CreateAdminIfNotExists(); err != nil {
			t.Fatalf("CreateAdminIfNotExists() error = %v", err)
		}
	}

	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count != 1 {
		t.Errorf("admins = %d, expected 1", count)
	}

	if _, err := svc.Login(ctx, &LoginRequest{Email: DefaultAdminEmail, Password: "admin"}, "", ""); err != nil {
		t.Errorf("default admin login error = %v", err)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc, db := newAuthService(t, nil)
	ctx := context.Background()
	user := createLocalUser(t, db, "ada@example.edu", "analytical")

	err := svc.ChangePassword(ctx, user.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "difference"})
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong old password: error = %v, expected ErrWrongPassword", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, &ChangePasswordRequest{OldPassword: "analytical", NewPassword: "difference"}); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.Login(ctx, &LoginRequest{Email: "ada@example.edu", Password: "difference"}, "", ""); err != nil {
		t.Errorf("login with new password error = %v", err)
	}

	if err := svc.ChangePassword(ctx, "missing", &ChangePasswordRequest{OldPassword: "a", NewPassword: "bbbbbb"}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: error = %v, expected ErrUserNotFound", err)
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Grace Brewster Hopper", "Grace Brewster", "Hopper"},
		{"Plato", "Plato", ""},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		if first != tt.first || last != tt.last {
			t.Errorf("splitName(%q) = %q, %q; expected %q, %q", tt.in, first, last, tt.first, tt.last)
		}
	}
}
