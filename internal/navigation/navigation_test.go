package navigation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/huangang/thesisdesk/internal/models"
)

func headers(sections []Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Header
	}
	return out
}

func TestDefault_ForRole(t *testing.T) {
	nav := Default()

	tests := []struct {
		role     models.Role
		expected []string
	}{
		{models.RoleStudent, []string{"Main", "Personal Information"}},
		{models.RoleFaculty, []string{"Main", "Schedule", "Thesis", "Documents", "Personal Information"}},
		{models.RoleStaff, []string{"Main", "Schedule", "Thesis", "Documents", "Personal Information"}},
		{models.RoleAdmin, []string{"Main", "Schedule", "Thesis", "Documents", "Account Management", "Personal Information"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := headers(nav.ForRole(tt.role)); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ForRole(%q) = %v, expected %v", tt.role, got, tt.expected)
			}
		})
	}
}

func TestForRole_FiltersLinks(t *testing.T) {
	nav := Default()

	for _, s := range nav.ForRole(models.RoleFaculty) {
		if s.Header != "Schedule" {
			continue
		}
		if len(s.Links) != 1 || s.Links[0].Name != "Defense Schedule" {
			t.Errorf("faculty schedule links = %+v, expected only Defense Schedule", s.Links)
		}
	}
	for _, s := range nav.ForRole(models.RoleStaff) {
		if s.Header != "Schedule" {
			continue
		}
		if len(s.Links) != 1 || s.Links[0].Name != "Defense Schedule Requests" {
			t.Errorf("staff schedule links = %+v, expected only Defense Schedule Requests", s.Links)
		}
	}
}

func TestIsVisible(t *testing.T) {
	tests := []struct {
		name     string
		link     Link
		role     models.Role
		expected bool
	}{
		{"any admits student", Link{Authorization: Everyone}, models.RoleStudent, true},
		{"any rejects unknown role", Link{Authorization: Everyone}, "GUEST", false},
		{"listed role", Link{Authorization: Only(models.RoleAdmin)}, models.RoleAdmin, true},
		{"no hierarchy", Link{Authorization: Only(models.RoleStaff)}, models.RoleAdmin, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVisible(tt.link, tt.role); got != tt.expected {
				t.Errorf("IsVisible() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestParse(t *testing.T) {
	doc := `
sections:
  - header: Tools
    allowed: staff
    links:
      - name: Reports
        href: /dashboard/reports
        authorization: [STAFF, admin]
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	s := cfg.Sections[0]
	if !reflect.DeepEqual(s.Allowed, Only(models.RoleStaff)) {
		t.Errorf("Allowed = %+v", s.Allowed)
	}
	if !reflect.DeepEqual(s.Links[0].Authorization, Only(models.RoleStaff, models.RoleAdmin)) {
		t.Errorf("Authorization = %+v", s.Links[0].Authorization)
	}

	invalid := []string{
		"sections:\n  - header: X\n    allowed: [WIZARD]\n",
		"sections:\n  - header: X\n    allowed: []\n",
		"sections:\n  - header: X\n    links:\n      - name: A\n        href: /a\n        authorization: any\n",
		"sections:\n  - allowed: any\n",
		"sections:\n  - header: X\n    allowed: any\n    links:\n      - name: A\n        authorization: any\n",
		"sections:\n  - header: X\n    allowed: {roles: [ADMIN]}\n",
	}
	for _, doc := range invalid {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("Parse(%q) should fail", doc)
		}
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil || len(cfg.Sections) == 0 {
		t.Fatalf("Load(\"\") = %v, %v", cfg, err)
	}

	path := filepath.Join(t.TempDir(), "nav.yaml")
	if err := os.WriteFile(path, []byte("sections:\n  - header: Only\n    allowed: any\n    links:\n      - name: Home\n        href: /\n        authorization: any\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load(path) error = %v", err)
	}
	if got := headers(cfg.ForRole(models.RoleStudent)); !reflect.DeepEqual(got, []string{"Only"}) {
		t.Errorf("override sections = %v", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) should fail")
	}
}

func TestAudience_MarshalJSON(t *testing.T) {
	b, _ := json.Marshal(Everyone)
	if string(b) != `"any"` {
		t.Errorf("Everyone = %s", b)
	}
	b, _ = json.Marshal(Only(models.RoleStaff, models.RoleAdmin))
	if string(b) != `["STAFF","ADMIN"]` {
		t.Errorf("Only = %s", b)
	}
}
