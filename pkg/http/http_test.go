package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "fitbook/pkg/errors"
)

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.SessionFull("s1", 2))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != apperrors.CodeSessionFull {
		t.Errorf("code = %s, want %s", body.Code, apperrors.CodeSessionFull)
	}
	if body.Details["session_id"] != "s1" {
		t.Errorf("details not propagated: %v", body.Details)
	}
}

func TestWriteError_PlainErrorHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("mongo: secret connection string"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body ErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Error != "Internal server error" {
		t.Errorf("internal error text leaked: %s", body.Error)
	}
}

func TestWriteError_StoreUnavailableSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.StoreUnavailable("down", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestExtractLimitOffset(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=5&offset=10", nil)
	limit, offset, err := ExtractLimitOffset(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != 5 || offset != 10 {
		t.Errorf("got limit=%d offset=%d", limit, offset)
	}

	req = httptest.NewRequest(http.MethodGet, "/x?limit=abc", nil)
	if _, _, err := ExtractLimitOffset(req); err == nil {
		t.Error("expected error for non-numeric limit")
	}
}

func TestExtractTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?from=2026-03-01T10:00:00%2B02:00", nil)
	got, err := ExtractTime(req, "from")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Hour() != 8 || got.Location().String() != "UTC" {
		t.Errorf("ExtractTime should normalize to UTC, got %v", got)
	}

	missing, err := ExtractTime(req, "to")
	if err != nil || missing != nil {
		t.Errorf("missing param should be nil, got %v %v", missing, err)
	}

	bad := httptest.NewRequest(http.MethodGet, "/x?from=yesterday", nil)
	if _, err := ExtractTime(bad, "from"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}
