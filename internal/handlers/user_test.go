package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/xuri/excelize/v2"
)

func userRouter(h *UserHandler) *gin.Engine {
	return authedRouter([]models.Role{models.RoleAdmin}, func(g *gin.RouterGroup) {
		g.GET("/users", h.List)
		g.GET("/users/export", h.Export)
		g.POST("/users", h.Create)
		g.DELETE("/users/:id", h.Delete)
	})
}

func TestUserHandler_Export(t *testing.T) {
	db := openTestDB(t)
	r := userRouter(NewUserHandler(services.NewUserService(db, nil)))
	admin := createUser(t, db, models.RoleAdmin, "Root", "Admin")
	createUser(t, db, models.RoleStudent, "Grace", "Hopper")

	w := do(t, r, http.MethodGet, "/api/users/export?role=student", bearerFor(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("Content-Type = %q, expected %q", got, xlsxContentType)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="Students.xlsx"` {
		t.Errorf("Content-Disposition = %q", got)
	}

	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Students")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "Grace" {
		t.Errorf("rows = %v, expected header + Grace", rows)
	}

	w = do(t, r, http.MethodGet, "/api/users/export?role=GUEST", bearerFor(t, admin), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid role status = %d, expected %d", w.Code, http.StatusBadRequest)
	}
}

func TestUserHandler_ListByRole(t *testing.T) {
	db := openTestDB(t)
	r := userRouter(NewUserHandler(services.NewUserService(db, nil)))
	admin := createUser(t, db, models.RoleAdmin, "Root", "Admin")
	createUser(t, db, models.RoleStudent, "Grace", "Hopper")
	createUser(t, db, models.RoleFaculty, "Ada", "Lovelace")

	w := do(t, r, http.MethodGet, "/api/users?role=FACULTY", bearerFor(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var page struct {
		Items []models.User `json:"items"`
		Total int64         `json:"total"`
	}
	decode(t, w, &page)
	if page.Total != 1 || page.Items[0].LastName != "Lovelace" {
		t.Errorf("page = %+v, expected only Lovelace", page)
	}
}

func TestUserHandler_CreateAndDelete(t *testing.T) {
	db := openTestDB(t)
	r := userRouter(NewUserHandler(services.NewUserService(db, nil)))
	admin := createUser(t, db, models.RoleAdmin, "Root", "Admin")
	auth := bearerFor(t, admin)

	body := gin.H{"role": "STAFF", "firstName": "Alan", "lastName": "Turing", "email": "alan@example.edu"}
	w := do(t, r, http.MethodPost, "/api/users", auth, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Success bool         `json:"success"`
		Message string       `json:"message"`
		Data    *models.User `json:"data"`
	}
	decode(t, w, &res)

	w = do(t, r, http.MethodPost, "/api/users", auth, body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, expected %d", w.Code, http.StatusConflict)
	}

	w = do(t, r, http.MethodPost, "/api/users", auth, gin.H{"role": "GUEST", "firstName": "A", "lastName": "B", "email": "ab@example.edu"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "role") {
		t.Errorf("bad role = %d %s, expected 400 naming role", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodDelete, "/api/users/"+admin.ID, auth, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("self delete status = %d, expected %d", w.Code, http.StatusConflict)
	}
	w = do(t, r, http.MethodDelete, "/api/users/"+res.Data.ID, auth, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete status = %d, expected %d", w.Code, http.StatusOK)
	}
	w = do(t, r, http.MethodDelete, "/api/users/"+res.Data.ID, auth, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, expected %d", w.Code, http.StatusNotFound)
	}
}

func TestUserHandler_AdminOnly(t *testing.T) {
	db := openTestDB(t)
	r := userRouter(NewUserHandler(services.NewUserService(db, nil)))

	for _, role := range []models.Role{models.RoleStudent, models.RoleFaculty, models.RoleStaff} {
		u := createUser(t, db, role, "User", string(role))
		w := do(t, r, http.MethodGet, "/api/users", bearerFor(t, u), nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s status = %d, expected %d", role, w.Code, http.StatusForbidden)
		}
	}
}
