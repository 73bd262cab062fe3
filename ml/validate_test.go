package ml

import (
	"errors"
	"math"
	"testing"
)

func TestValidateRecord(t *testing.T) {
	ok := FeatureRecord{Pulse: Float(80), RectalTemp: Float(38.2), Pain: Float(17)}
	if err := ValidateRecord(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := FeatureRecord{Pulse: Float(10), RectalTemp: Float(math.Inf(1)), Surgery: Float(-1)}
	err := ValidateRecord(bad)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	issues := CheckRecord(bad)
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %v", issues)
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) || schemaErr.Column == "" {
		t.Fatalf("expected a column-level SchemaError, got %v", err)
	}
}

func TestRecordRowRoundTrip(t *testing.T) {
	rec := FeatureRecord{Pulse: Float(66), Lesion1: Float(2208)}
	row := rec.Row()
	if len(row) != len(FeatureNames()) {
		t.Fatalf("expected %d columns, got %d", len(FeatureNames()), len(row))
	}
	if !IsMissing(row["age"]) {
		t.Fatal("unset field should be missing")
	}
	back := RecordFromRow(row)
	if back.Pulse == nil || *back.Pulse != 66 || back.Age != nil {
		t.Fatalf("unexpected record %+v", back)
	}
}

func TestCodeBook(t *testing.T) {
	if v, ok := DecodeCode("pain", "Severe Pain"); !ok || v != 4 {
		t.Fatalf("expected severe_pain=4, got %v %v", v, ok)
	}
	if v, ok := DecodeCode(OutcomeColumn, "lived"); !ok || v != LivedOutcome {
		t.Fatalf("expected lived=%v, got %v %v", LivedOutcome, v, ok)
	}
	if _, ok := DecodeCode("pulse", "fast"); ok {
		t.Fatal("numeric columns have no codes")
	}
	if name := CodeName("age", 9); name != "young" {
		t.Fatalf("expected young, got %q", name)
	}
}
