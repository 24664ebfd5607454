package utils

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestOptionalNumeric(t *testing.T) {
	var value pgtype.Numeric
	if err := value.Scan("12.50"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	got := OptionalNumeric(value)
	if got == nil || *got != 12.5 {
		t.Fatalf("expected 12.5, got %v", got)
	}
	if OptionalNumeric(pgtype.Numeric{}) != nil {
		t.Fatalf("expected nil for NULL")
	}
}

func TestOptionalText(t *testing.T) {
	if got := OptionalText(pgtype.Text{String: "lunch", Valid: true}); got == nil || *got != "lunch" {
		t.Fatalf("expected lunch, got %v", got)
	}
	if OptionalText(pgtype.Text{}) != nil {
		t.Fatalf("expected nil for NULL")
	}
}
