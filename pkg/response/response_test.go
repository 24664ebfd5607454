package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorDetails(rec, http.StatusConflict, "PROMOTION_GROUP_CONFLICT", "conflict", map[string]any{"conflictsWith": 3})

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false || body["error"] != "PROMOTION_GROUP_CONFLICT" {
		t.Fatalf("unexpected body %v", body)
	}
	details, ok := body["details"].(map[string]any)
	if !ok || details["conflictsWith"] != float64(3) {
		t.Fatalf("unexpected details %v", body["details"])
	}
}

func TestErrorOmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "VALIDATION_ERROR", "bad")

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("expected no details, got %v", body)
	}
}
