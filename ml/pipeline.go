package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Schema fixes the input columns and their partition.
type Schema struct {
	Columns     []string
	Numerical   []string
	Categorical []string
}

// CurrentSchema is the schema compiled into this binary.
func CurrentSchema() Schema {
	return Schema{
		Columns:     FeatureNames(),
		Numerical:   slices.Clone(NumericalFeatures),
		Categorical: CategoricalFeatures(),
	}
}

// Fingerprint is a short digest of column names, order and partition.
func (s Schema) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(strings.Join(s.Columns, ",")))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(s.Numerical, ",")))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(s.Categorical, ",")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (s Schema) Equal(other Schema) bool {
	return slices.Equal(s.Columns, other.Columns) &&
		slices.Equal(s.Numerical, other.Numerical) &&
		slices.Equal(s.Categorical, other.Categorical)
}

// TrainingInfo records how an artifact was produced.
type TrainingInfo struct {
	TrainedAt   time.Time
	Rows        int
	TrainRows   int
	TestRows    int
	TestRatio   float64
	Seed        int64
	ClassCounts [2]int
	Evaluation  Evaluation
}

// Pipeline bundles the fitted preprocessor and tree. It is immutable once
// fitted or loaded and safe for concurrent Predict calls.
type Pipeline struct {
	Version      int
	Schema       Schema
	Preprocessor Preprocessor
	Tree         DecisionTree
	Training     TrainingInfo
}

// Prediction is the survival verdict for one record.
type Prediction struct {
	Label         int        `json:"label"`
	Probabilities [2]float64 `json:"probabilities"`
	Survived      bool       `json:"survived"`
	Confidence    float64    `json:"confidence"`
}

func newPrediction(proba [2]float64) Prediction {
	p := Prediction{Probabilities: proba}
	if proba[1] >= proba[0] {
		p.Label = 1
		p.Survived = true
		p.Confidence = proba[1]
	} else {
		p.Confidence = proba[0]
	}
	return p
}

// Predict runs one row through the frozen transform and the tree.
func (p *Pipeline) Predict(row Row) (Prediction, error) {
	if err := CheckRow(row, p.Schema.Columns); err != nil {
		return Prediction{}, err
	}
	vector, err := p.Preprocessor.Transform(row)
	if err != nil {
		return Prediction{}, err
	}
	proba, err := p.Tree.PredictProba(vector)
	if err != nil {
		return Prediction{}, fmt.Errorf("tree: %w", err)
	}
	return newPrediction(proba), nil
}

// FeatureImportance pairs a transformed column with its Gini importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TopFeatures returns the n most important transformed columns with non-zero importance.
func (p *Pipeline) TopFeatures(n int) []FeatureImportance {
	names := p.Preprocessor.OutputNames()
	importances := p.Tree.Importances(len(names))
	out := make([]FeatureImportance, 0, len(names))
	for i, v := range importances {
		if v > 0 {
			out = append(out, FeatureImportance{Feature: names[i], Importance: v})
		}
	}
	slices.SortStableFunc(out, func(a, b FeatureImportance) int {
		switch {
		case a.Importance > b.Importance:
			return -1
		case a.Importance < b.Importance:
			return 1
		}
		return 0
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ModelInfo is the public description of a loaded pipeline.
type ModelInfo struct {
	Version           int                 `json:"version"`
	SchemaFingerprint string              `json:"schema_fingerprint"`
	Columns           []string            `json:"columns"`
	Numerical         []string            `json:"numerical"`
	Categorical       []string            `json:"categorical"`
	EncodedWidth      int                 `json:"encoded_width"`
	TreeDepth         int                 `json:"tree_depth"`
	TreeNodes         int                 `json:"tree_nodes"`
	TreeLeaves        int                 `json:"tree_leaves"`
	TrainedAt         time.Time           `json:"trained_at"`
	TrainRows         int                 `json:"train_rows"`
	TestRows          int                 `json:"test_rows"`
	Evaluation        Evaluation          `json:"evaluation"`
	TopFeatures       []FeatureImportance `json:"top_features"`
}

func (p *Pipeline) Info() ModelInfo {
	return ModelInfo{
		Version:           p.Version,
		SchemaFingerprint: p.Schema.Fingerprint(),
		Columns:           p.Schema.Columns,
		Numerical:         p.Schema.Numerical,
		Categorical:       p.Schema.Categorical,
		EncodedWidth:      p.Preprocessor.Width(),
		TreeDepth:         p.Tree.Depth(),
		TreeNodes:         len(p.Tree.Nodes),
		TreeLeaves:        p.Tree.LeafCount(),
		TrainedAt:         p.Training.TrainedAt,
		TrainRows:         p.Training.TrainRows,
		TestRows:          p.Training.TestRows,
		Evaluation:        p.Training.Evaluation,
		TopFeatures:       p.TopFeatures(10),
	}
}
