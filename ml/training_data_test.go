package ml

import (
	"errors"
	"testing"
)

func TestGenerateLabels(t *testing.T) {
	outcomes := []float64{1, 2, 3, Missing(), 1}
	labels, err := GenerateLabels(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 0, 0, 0, 1}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("label %d: expected %d, got %d", i, want[i], labels[i])
		}
	}
}

func TestBuildTrainingSetSingleClass(t *testing.T) {
	rows := []Row{{}, {}, {}}
	_, err := BuildTrainingSet(rows, []float64{1, 1, 1})
	if !errors.Is(err, ErrTrainingData) {
		t.Fatalf("expected ErrTrainingData, got %v", err)
	}
}

func TestBuildTrainingSetSingletonClass(t *testing.T) {
	rows := []Row{{}, {}, {}}
	_, err := BuildTrainingSet(rows, []float64{1, 1, 2})
	if !errors.Is(err, ErrTrainingData) {
		t.Fatalf("expected ErrTrainingData, got %v", err)
	}
}

func TestBuildTrainingSetEmpty(t *testing.T) {
	if _, err := BuildTrainingSet(nil, nil); !errors.Is(err, ErrTrainingData) {
		t.Fatalf("expected ErrTrainingData, got %v", err)
	}
}
