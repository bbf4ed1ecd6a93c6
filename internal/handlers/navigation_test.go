package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/navigation"
)

func TestNavigationHandler_Get(t *testing.T) {
	h := NewNavigationHandler(navigation.Default())
	r := authedRouter(nil, func(g *gin.RouterGroup) { g.GET("/navigation", h.Get) })

	headers := func(role models.Role) map[string]bool {
		u := &models.User{ID: "u-" + string(role), Role: role, Email: "x@example.edu", FirstName: "X", LastName: "Y"}
		w := do(t, r, http.MethodGet, "/api/navigation", bearerFor(t, u), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", role, w.Code)
		}
		var body struct {
			Sections []struct {
				Header string `json:"header"`
			} `json:"sections"`
		}
		decode(t, w, &body)
		got := map[string]bool{}
		for _, s := range body.Sections {
			got[s.Header] = true
		}
		return got
	}

	tests := []struct {
		role         models.Role
		account      bool
		schedule     bool
		personalInfo bool
	}{
		{models.RoleAdmin, true, true, true},
		{models.RoleStaff, false, true, true},
		{models.RoleFaculty, false, true, true},
		{models.RoleStudent, false, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got := headers(tt.role)
			if got["Account Management"] != tt.account {
				t.Errorf("Account Management = %v, expected %v", got["Account Management"], tt.account)
			}
			if got["Schedule"] != tt.schedule {
				t.Errorf("Schedule = %v, expected %v", got["Schedule"], tt.schedule)
			}
			if got["Personal Information"] != tt.personalInfo {
				t.Errorf("Personal Information = %v, expected %v", got["Personal Information"], tt.personalInfo)
			}
		})
	}
}
