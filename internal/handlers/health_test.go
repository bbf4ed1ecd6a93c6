package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name     string
		closeDB  bool
		expected int
		database string
	}{
		{"database up", false, http.StatusOK, "ok"},
		{"database closed", true, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			if tt.closeDB {
				sqlDB, _ := db.DB()
				sqlDB.Close()
			}
			r := gin.New()
			r.GET("/health", NewHealthHandler(db).CheckHealth)

			w := do(t, r, http.MethodGet, "/health", "", nil)
			if w.Code != tt.expected {
				t.Fatalf("status = %d, expected %d", w.Code, tt.expected)
			}
			var res struct {
				Components struct {
					Database string `json:"database"`
				} `json:"components"`
			}
			decode(t, w, &res)
			if res.Components.Database != tt.database {
				t.Errorf("database = %q, expected %q", res.Components.Database, tt.database)
			}
			if strings.Contains(w.Body.String(), "closed") {
				t.Errorf("body %s carries the driver error", w.Body.String())
			}
		})
	}
}
