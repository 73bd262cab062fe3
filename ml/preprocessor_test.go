package ml

import (
	"errors"
	"math"
	"testing"
)

func prepRows() []Row {
	nan := Missing()
	return []Row{
		{"pulse": 40, "pain": 1},
		{"pulse": 60, "pain": 2},
		{"pulse": nan, "pain": 2},
		{"pulse": 80, "pain": nan},
	}
}

func TestPreprocessorFit(t *testing.T) {
	var p Preprocessor
	if err := p.Fit(prepRows(), []string{"pulse"}, []string{"pain"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	num := p.Numeric[0]
	if num.Median != 60 {
		t.Fatalf("expected median 60, got %f", num.Median)
	}
	if num.Mean != 60 {
		t.Fatalf("expected mean of imputed column 60, got %f", num.Mean)
	}
	// imputed column is 40,60,60,80
	if want := math.Sqrt(200); math.Abs(num.Scale-want) > 1e-9 {
		t.Fatalf("expected scale %f, got %f", want, num.Scale)
	}
	cat := p.Categorical[0]
	if cat.Mode != 2 {
		t.Fatalf("expected mode 2, got %f", cat.Mode)
	}
	if len(cat.Categories) != 2 || p.Width() != 3 {
		t.Fatalf("unexpected vocabulary %v, width %d", cat.Categories, p.Width())
	}
	names := p.OutputNames()
	if names[0] != "pulse" || names[1] != "pain=1" || names[2] != "pain=2" {
		t.Fatalf("unexpected output names %v", names)
	}
}

func TestPreprocessorTransform(t *testing.T) {
	var p Preprocessor
	if err := p.Fit(prepRows(), []string{"pulse"}, []string{"pain"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := p.Transform(Row{"pulse": Missing(), "pain": Missing()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 0 || got[1] != 0 || got[2] != 1 {
		t.Fatalf("missing values should impute to median and mode, got %v", got)
	}

	got, err = p.Transform(Row{"pulse": 60, "pain": 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[1] != 0 || got[2] != 0 {
		t.Fatalf("unseen category should encode as all zeros, got %v", got)
	}

	_, err = p.Transform(Row{"pulse": 60})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestPreprocessorDegenerateColumns(t *testing.T) {
	nan := Missing()
	rows := []Row{
		{"pulse": 50, "rectal_temp": nan, "pain": nan},
		{"pulse": 50, "rectal_temp": nan, "pain": nan},
	}
	var p Preprocessor
	if err := p.Fit(rows, []string{"pulse", "rectal_temp"}, []string{"pain"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Numeric[0].Scale != 1 {
		t.Fatalf("constant column should get scale 1, got %f", p.Numeric[0].Scale)
	}
	got, err := p.Transform(Row{"pulse": 70, "rectal_temp": 38, "pain": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 20 || got[1] != 0 {
		t.Fatalf("unexpected vector %v", got)
	}
}

func TestPreprocessorNotFitted(t *testing.T) {
	var p Preprocessor
	if _, err := p.Transform(Row{}); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
	if err := p.Fit(nil, nil, nil); !errors.Is(err, ErrTrainingData) {
		t.Fatalf("expected ErrTrainingData, got %v", err)
	}
}

func TestModeTieSmallest(t *testing.T) {
	if got := mode([]float64{3, 1, 3, 1, 2}); got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
}
