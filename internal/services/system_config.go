package services

import (
	"strconv"
	"strings"

	"github.com/huangang/thesisdesk/internal/config"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
	"gorm.io/gorm"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where(models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetInt returns the value of key, or defaultValue when it is missing or not a
// positive integer.
func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.GetWithDefault(key, "")))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func (s *SystemConfigService) GetBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s.GetWithDefault(key, "")))
	if err != nil {
		return defaultValue
	}
	return b
}

// Set stores value under key. A new key joins the group named by its prefix.
func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	return s.db.Where(models.SystemConfig{Key: key}).
		Attrs(models.SystemConfig{Group: groupOf(key)}).
		Assign(models.SystemConfig{Value: value}).
		FirstOrCreate(&cfg).Error
}

func groupOf(key string) string {
	prefix, _, _ := strings.Cut(key, "_")
	switch prefix {
	case "auth", "ldap", "email":
		return prefix
	}
	return "system"
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where(models.SystemConfig{Group: group}).Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// settings is one group of stored values keyed by config key.
type settings map[string]string

// groupSettings reads a whole group in one query. A failed read yields no
// stored values, so every lookup falls back to its default.
func (s *SystemConfigService) groupSettings(group string) settings {
	configs, err := s.GetByGroup(group)
	if err != nil {
		logger.Warn().Err(err).Str("group", group).Msg("load settings group failed")
		return settings{}
	}
	out := make(settings, len(configs))
	for _, c := range configs {
		out[c.Key] = c.Value
	}
	return out
}

func (m settings) str(key, defaultValue string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return defaultValue
}

func (m settings) integer(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(m[key]))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func (m settings) boolean(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(m[key]))
	if err != nil {
		return defaultValue
	}
	return b
}

type LDAPConfigResponse struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	BaseDN      string `json:"baseDn"`
	BindDN      string `json:"bindDn"`
	UserFilter  string `json:"userFilter"`
	UseSSL      bool   `json:"useSsl"`
	PasswordSet bool   `json:"passwordSet"`
}

// LDAPSettings overlays the stored ldap_* settings on the file defaults.
func (s *SystemConfigService) LDAPSettings(defaults *config.LDAPConfig) *config.LDAPConfig {
	cfg := config.LDAPConfig{Port: 389, UserFilter: "(uid=%s)"}
	if defaults != nil {
		cfg = *defaults
	}
	stored := s.groupSettings("ldap")
	cfg.Enabled = stored.boolean("ldap_enabled", cfg.Enabled)
	cfg.Host = stored.str("ldap_host", cfg.Host)
	cfg.Port = stored.integer("ldap_port", cfg.Port)
	cfg.BaseDN = stored.str("ldap_base_dn", cfg.BaseDN)
	cfg.BindDN = stored.str("ldap_bind_dn", cfg.BindDN)
	if pw := stored.str("ldap_bind_password", ""); pw != "" {
		cfg.BindPassword = pw
	}
	if filter := stored.str("ldap_user_filter", ""); filter != "" {
		cfg.UserFilter = filter
	}
	cfg.UseSSL = stored.boolean("ldap_use_ssl", cfg.UseSSL)
	return &cfg
}

func (s *SystemConfigService) GetLDAPConfig() *LDAPConfigResponse {
	cfg := s.LDAPSettings(nil)
	return &LDAPConfigResponse{
		Enabled:     cfg.Enabled,
		Host:        cfg.Host,
		Port:        cfg.Port,
		BaseDN:      cfg.BaseDN,
		BindDN:      cfg.BindDN,
		UserFilter:  cfg.UserFilter,
		UseSSL:      cfg.UseSSL,
		PasswordSet: cfg.BindPassword != "",
	}
}

type UpdateLDAPConfigRequest struct {
	Enabled      *bool   `json:"enabled"`
	Host         *string `json:"host"`
	Port         *int    `json:"port"`
	BaseDN       *string `json:"baseDn"`
	BindDN       *string `json:"bindDn"`
	BindPassword *string `json:"bindPassword"`
	UserFilter   *string `json:"userFilter"`
	UseSSL       *bool   `json:"useSsl"`
}

func (s *SystemConfigService) UpdateLDAPConfig(req *UpdateLDAPConfigRequest) error {
	updates := map[string]*string{
		"ldap_host":        req.Host,
		"ldap_base_dn":     req.BaseDN,
		"ldap_bind_dn":     req.BindDN,
		"ldap_user_filter": req.UserFilter,
	}
	if req.Enabled != nil {
		updates["ldap_enabled"] = strPtr(strconv.FormatBool(*req.Enabled))
	}
	if req.Port != nil {
		updates["ldap_port"] = strPtr(strconv.Itoa(*req.Port))
	}
	if req.UseSSL != nil {
		updates["ldap_use_ssl"] = strPtr(strconv.FormatBool(*req.UseSSL))
	}
	// an empty password keeps the stored one
	if req.BindPassword != nil && *req.BindPassword != "" {
		updates["ldap_bind_password"] = req.BindPassword
	}
	return s.setAll(updates)
}

// EmailSettings is the SMTP configuration stored in the email group.
type EmailSettings struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"smtpHost"`
	Port     int    `json:"smtpPort"`
	Username string `json:"smtpUsername"`
	Password string `json:"-"`
	From     string `json:"from"`
}

func (s *SystemConfigService) GetEmailSettings() *EmailSettings {
	stored := s.groupSettings("email")
	return &EmailSettings{
		Enabled:  stored.boolean("email_enabled", false),
		Host:     stored.str("email_smtp_host", ""),
		Port:     stored.integer("email_smtp_port", 587),
		Username: stored.str("email_smtp_username", ""),
		Password: stored.str("email_smtp_password", ""),
		From:     stored.str("email_from", ""),
	}
}

type UpdateEmailConfigRequest struct {
	Enabled  *bool   `json:"enabled"`
	Host     *string `json:"smtpHost"`
	Port     *int    `json:"smtpPort"`
	Username *string `json:"smtpUsername"`
	Password *string `json:"smtpPassword"`
	From     *string `json:"from"`
}

func (s *SystemConfigService) UpdateEmailConfig(req *UpdateEmailConfigRequest) error {
	updates := map[string]*string{
		"email_smtp_host":     req.Host,
		"email_smtp_username": req.Username,
		"email_from":          req.From,
	}
	if req.Enabled != nil {
		updates["email_enabled"] = strPtr(strconv.FormatBool(*req.Enabled))
	}
	if req.Port != nil {
		updates["email_smtp_port"] = strPtr(strconv.Itoa(*req.Port))
	}
	if req.Password != nil && *req.Password != "" {
		updates["email_smtp_password"] = req.Password
	}
	return s.setAll(updates)
}

func (s *SystemConfigService) setAll(updates map[string]*string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txs := &SystemConfigService{db: tx}
		for key, value := range updates {
			if value == nil {
				continue
			}
			if err := txs.Set(key, *value); err != nil {
				return err
			}
		}
		return nil
	})
}

func strPtr(s string) *string { return &s }
