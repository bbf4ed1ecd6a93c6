package handlers

import (
	"net/http"
	"testing"

	"github.com/huangang/thesisdesk/pkg/response"
)

func TestActionStatus(t *testing.T) {
	tests := []struct {
		name     string
		result   response.Result[any]
		notFound []string
		expected int
	}{
		{"not found in error", response.FailError[any]("User not found."), []string{"User not found."}, http.StatusNotFound},
		{"not found in message", response.Fail[any]("Student not found."), []string{"Student not found."}, http.StatusNotFound},
		{"store failure", response.FailError[any]("Failed to update user."), nil, http.StatusInternalServerError},
		{"rule violation", response.Fail[any]("This student already has a pending request."), []string{"Student not found."}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actionStatus(tt.result, tt.notFound...); got != tt.expected {
				t.Errorf("actionStatus() = %d, expected %d", got, tt.expected)
			}
		})
	}
}
