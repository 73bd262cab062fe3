package ml

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestTrainEndToEnd(t *testing.T) {
	p := trainSynthetic(t)

	if p.Training.TrainRows+p.Training.TestRows != 80 || p.Training.TestRows < 19 || p.Training.TestRows > 21 {
		t.Fatalf("expected a quarter held out, got %d/%d", p.Training.TrainRows, p.Training.TestRows)
	}
	if p.Training.Seed != DefaultSeed {
		t.Fatalf("expected seed %d, got %d", DefaultSeed, p.Training.Seed)
	}
	if p.Training.Evaluation.Accuracy < 0.8 {
		t.Fatalf("expected the pulse rule to be learned, accuracy %f", p.Training.Evaluation.Accuracy)
	}
	if top := p.TopFeatures(1); len(top) != 1 || top[0].Feature != "pulse" {
		t.Fatalf("expected pulse to dominate, got %v", top)
	}

	rows, _ := syntheticData(80, 7)
	for i, row := range rows {
		pred, err := p.Predict(row)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if math.Abs(pred.Probabilities[0]+pred.Probabilities[1]-1) > 1e-9 {
			t.Fatalf("row %d: probabilities do not sum to 1: %v", i, pred.Probabilities)
		}
		if pred.Label != 0 && pred.Label != 1 {
			t.Fatalf("row %d: label %d", i, pred.Label)
		}
		if pred.Probabilities[pred.Label] < pred.Probabilities[1-pred.Label] {
			t.Fatalf("row %d: label %d disagrees with %v", i, pred.Label, pred.Probabilities)
		}
		if pred.Survived != (pred.Label == 1) {
			t.Fatalf("row %d: survived flag disagrees with label", i)
		}
	}
}

func TestTrainDeterministic(t *testing.T) {
	a := trainSynthetic(t)
	b := trainSynthetic(t)
	if !reflect.DeepEqual(a.Tree.Nodes, b.Tree.Nodes) {
		t.Fatal("identical training runs produced different trees")
	}
	if a.Training.Evaluation != b.Training.Evaluation {
		t.Fatalf("evaluations differ: %+v vs %+v", a.Training.Evaluation, b.Training.Evaluation)
	}
}

func TestTrainRejectsBadData(t *testing.T) {
	rows, outcomes := syntheticData(10, 1)

	if _, err := Train(rows, nil, DefaultTrainConfig()); !errors.Is(err, ErrTrainingData) {
		t.Fatalf("expected ErrTrainingData without outcomes, got %v", err)
	}

	lived := make([]float64, len(outcomes))
	for i := range lived {
		lived[i] = 1
	}
	if _, err := Train(rows, lived, DefaultTrainConfig()); !errors.Is(err, ErrTrainingData) {
		t.Fatalf("expected ErrTrainingData for a single class, got %v", err)
	}

	delete(rows[3], "pulse")
	if _, err := Train(rows, outcomes, DefaultTrainConfig()); !errors.Is(err, ErrTrainingData) {
		t.Fatalf("expected ErrTrainingData for a short row, got %v", err)
	}
}

func TestPredictUnseenCategory(t *testing.T) {
	p := trainSynthetic(t)
	rec := FeatureRecord{Pulse: Float(60), Pain: Float(42), Surgery: Float(7)}
	pred, err := p.Predict(rec.Row())
	if err != nil {
		t.Fatalf("unseen categories must not fail: %v", err)
	}
	if math.Abs(pred.Probabilities[0]+pred.Probabilities[1]-1) > 1e-9 {
		t.Fatalf("probabilities do not sum to 1: %v", pred.Probabilities)
	}
}

func TestPredictAllMissing(t *testing.T) {
	p := trainSynthetic(t)
	if _, err := p.Predict(FeatureRecord{}.Row()); err != nil {
		t.Fatalf("an all-missing record should be imputed, got %v", err)
	}
}

func TestPipelineSaveLoadRoundTrip(t *testing.T) {
	p := trainSynthetic(t)
	path := filepath.Join(t.TempDir(), "models", "pipeline.gob")
	if err := p.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Schema.Fingerprint() != CurrentSchema().Fingerprint() {
		t.Fatal("fingerprint changed across save/load")
	}

	rows, _ := syntheticData(40, 99)
	for i, row := range rows {
		want, err := p.Predict(row)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		got, err := loaded.Predict(row)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("row %d: %+v after reload, %+v before", i, got, want)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestLoadModelErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadModel(filepath.Join(dir, "absent.gob")); !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage.gob")
	if err := os.WriteFile(garbage, []byte("not a pipeline"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModel(garbage); !errors.Is(err, ErrArtifactCorrupt) {
		t.Fatalf("expected ErrArtifactCorrupt, got %v", err)
	}

	p := trainSynthetic(t)
	good := filepath.Join(dir, "good.gob")
	if err := p.Save(good); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "truncated.gob")
	if err := os.WriteFile(truncated, data[:len(data)/2], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModel(truncated); !errors.Is(err, ErrArtifactCorrupt) {
		t.Fatalf("expected ErrArtifactCorrupt for a truncated file, got %v", err)
	}
}

func TestLoadModelSchemaDrift(t *testing.T) {
	p := trainSynthetic(t)
	p.Schema.Columns = append(p.Schema.Columns, "heart_rate_variability")
	path := filepath.Join(t.TempDir(), "drift.gob")
	if err := p.Save(path); err != nil {
		t.Fatal(err)
	}
	_, err := LoadModel(path)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if !errors.Is(err, ErrArtifactCorrupt) {
		t.Fatalf("a drifted artifact must not be servable, got %v", err)
	}
}

func TestSaveUnfitted(t *testing.T) {
	var p Pipeline
	if err := p.Save(filepath.Join(t.TempDir(), "x.gob")); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
}

func TestPipelineInfo(t *testing.T) {
	p := trainSynthetic(t)
	info := p.Info()
	if len(info.Columns) != 26 || len(info.Numerical) != 5 || len(info.Categorical) != 21 {
		t.Fatalf("unexpected schema in info: %d/%d/%d", len(info.Columns), len(info.Numerical), len(info.Categorical))
	}
	if info.TreeNodes == 0 || info.TreeLeaves == 0 || info.EncodedWidth == 0 {
		t.Fatalf("tree summary missing: %+v", info)
	}
}

func TestSeparableRoundTrip(t *testing.T) {
	var rows []Row
	var outcomes []float64
	for i := 0; i < 40; i++ {
		jitter := float64(i % 5)
		if i%2 == 0 {
			rows = append(rows, FeatureRecord{Pulse: Float(110 + jitter), RectalTemp: Float(40 + jitter/10)}.Row())
			outcomes = append(outcomes, 2)
		} else {
			rows = append(rows, FeatureRecord{Pulse: Float(45 + jitter), RectalTemp: Float(37.5 + jitter/10)}.Row())
			outcomes = append(outcomes, 1)
		}
	}
	p, err := Train(rows, outcomes, DefaultTrainConfig())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pipeline.bin")
	if err := p.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	pred, err := loaded.Predict(FeatureRecord{Pulse: Float(130), RectalTemp: Float(40.5)}.Row())
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Label != 0 || pred.Probabilities[0] <= 0.5 {
		t.Fatalf("expected non-survival, got %+v", pred)
	}
}

func TestPrimaryFieldsScenario(t *testing.T) {
	svc, err := NewServiceFromPipeline(trainSynthetic(t))
	if err != nil {
		t.Fatal(err)
	}
	rec := FeatureRecord{
		Pulse:            Float(60),
		RectalTemp:       Float(38.0),
		RespiratoryRate:  Float(24),
		PackedCellVolume: Float(45.0),
		Pain:             Float(1),
		Surgery:          Float(2),
		Age:              Float(1),
	}
	pred, err := svc.Predict(context.Background(), rec)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, p := range pred.Probabilities {
		if p < 0 || p > 1 {
			t.Fatalf("probability out of range: %v", pred.Probabilities)
		}
	}
	if math.Abs(pred.Probabilities[0]+pred.Probabilities[1]-1) > 1e-9 {
		t.Fatalf("probabilities do not sum to 1: %v", pred.Probabilities)
	}
	if pred.Confidence != pred.Probabilities[pred.Label] {
		t.Fatalf("confidence %f does not match label %d", pred.Confidence, pred.Label)
	}
}
