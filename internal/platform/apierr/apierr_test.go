package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
)

func TestFromStorage(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &filestore.Error{Kind: filestore.KindValidation, Op: "save"}, http.StatusBadRequest, "invalid_request"},
		{"not found", &filestore.Error{Kind: filestore.KindNotFound, Op: "read"}, http.StatusNotFound, "not_found"},
		{"io", &filestore.Error{Kind: filestore.KindStorageIO, Op: "write"}, http.StatusInternalServerError, "storage_error"},
		{"wrapped", fmt.Errorf("upload: %w", &filestore.Error{Kind: filestore.KindNotFound}), http.StatusNotFound, "not_found"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "server_error"},
		{"api error passes through", New(http.StatusConflict, "taken", errors.New("x")), http.StatusConflict, "taken"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromStorage(tc.err)
			if got.Status != tc.status || got.Code != tc.code {
				t.Fatalf("FromStorage: want=%d/%q got=%d/%q", tc.status, tc.code, got.Status, got.Code)
			}
		})
	}
	if FromStorage(nil) != nil {
		t.Fatalf("FromStorage(nil): want nil")
	}
}

func TestErrorMessage(t *testing.T) {
	if got := New(http.StatusBadRequest, "bad", nil).Error(); got != "bad" {
		t.Fatalf("Error: want=%q got=%q", "bad", got)
	}
	if got := New(http.StatusTeapot, "", nil).Error(); got != "api error (418)" {
		t.Fatalf("Error: want=%q got=%q", "api error (418)", got)
	}
	inner := errors.New("inner")
	if !errors.Is(New(http.StatusBadRequest, "bad", inner), inner) {
		t.Fatalf("Unwrap: want inner error")
	}
}
