package services

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/huangang/thesisdesk/internal/config"
)

type LDAPService struct {
	configSvc *SystemConfigService
	defaults  *config.LDAPConfig
}

// NewLDAPService reads its settings from system configs on every call, with
// defaults from the config file.
func NewLDAPService(configSvc *SystemConfigService, defaults *config.LDAPConfig) *LDAPService {
	return &LDAPService{configSvc: configSvc, defaults: defaults}
}

func (s *LDAPService) settings() *config.LDAPConfig {
	return s.configSvc.LDAPSettings(s.defaults)
}

func (s *LDAPService) IsEnabled() bool {
	return s.settings().Enabled
}

// Authenticate authenticates a user against LDAP
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	cfg := s.settings()
	if !cfg.Enabled {
		return nil, fmt.Errorf("LDAP is not enabled")
	}
	if password == "" {
		return nil, fmt.Errorf("invalid credentials")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var conn *ldap.Conn
	var err error

	if cfg.UseSSL {
		conn, err = ldap.DialTLS("tcp", addr, &tls.Config{ServerName: cfg.Host})
	} else {
		conn, err = ldap.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		searchFilter(cfg.UserFilter, username),
		[]string{"dn", "cn", "givenName", "sn", "mail", "uid", "sAMAccountName"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in LDAP")
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found in LDAP")
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	return ldapUserFromEntry(entry), nil
}

type LDAPUser struct {
	DN        string
	Username  string
	Email     string
	FirstName string
	LastName  string
}

func searchFilter(template, username string) string {
	if template == "" {
		template = "(uid=%s)"
	}
	return fmt.Sprintf(template, ldap.EscapeFilter(username))
}

func ldapUserFromEntry(entry *ldap.Entry) *LDAPUser {
	user := &LDAPUser{
		DN:        entry.DN,
		Username:  entry.GetAttributeValue("uid"),
		Email:     strings.ToLower(strings.TrimSpace(entry.GetAttributeValue("mail"))),
		FirstName: entry.GetAttributeValue("givenName"),
		LastName:  entry.GetAttributeValue("sn"),
	}
	// Active Directory
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	if user.FirstName == "" && user.LastName == "" {
		user.FirstName, user.LastName = splitName(entry.GetAttributeValue("cn"))
	}
	if user.FirstName == "" {
		user.FirstName = user.Username
	}
	return user
}

// splitName splits a display name into first and last name on the last space.
func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return name, ""
	}
	return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
}
