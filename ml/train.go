package ml

import (
	"fmt"
	"time"
)

// TrainConfig controls the split and the tree. Zero values take the defaults.
type TrainConfig struct {
	TestRatio       float64
	Seed            int64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

// DefaultTrainConfig is a 25% stratified hold-out with seed 42 and an unbounded tree.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestRatio:       0.25,
		Seed:            DefaultSeed,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// Train fits a pipeline on rows labelled by their raw outcome codes.
// Statistics are computed on the training partition only.
func Train(rows []Row, outcomes []float64, cfg TrainConfig) (*Pipeline, error) {
	if outcomes == nil {
		return nil, trainingDataError("dataset has no %s column", OutcomeColumn)
	}
	if cfg.TestRatio <= 0 || cfg.TestRatio >= 1 {
		cfg.TestRatio = 0.25
	}

	schema := CurrentSchema()
	for i, row := range rows {
		if err := CheckRow(row, schema.Columns); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrTrainingData, i, err)
		}
	}
	set, err := BuildTrainingSet(rows, outcomes)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx := StratifiedSplit(set.Labels, cfg.TestRatio, cfg.Seed)
	trainRows, trainLabels := pick(set, trainIdx)
	testRows, testLabels := pick(set, testIdx)

	p := &Pipeline{Version: ArtifactVersion, Schema: schema}
	if err := p.Preprocessor.Fit(trainRows, schema.Numerical, schema.Categorical); err != nil {
		return nil, err
	}
	trainMatrix, err := p.Preprocessor.TransformAll(trainRows)
	if err != nil {
		return nil, err
	}

	tree := NewDecisionTree(cfg.MaxDepth, cfg.Seed)
	if cfg.MinSamplesSplit > 0 {
		tree.MinSamplesSplit = cfg.MinSamplesSplit
	}
	if cfg.MinSamplesLeaf > 0 {
		tree.MinSamplesLeaf = cfg.MinSamplesLeaf
	}
	if err := tree.Train(trainMatrix, trainLabels); err != nil {
		return nil, fmt.Errorf("train tree: %w", err)
	}
	p.Tree = *tree

	predicted := make([]int, len(testRows))
	for i, row := range testRows {
		pred, err := p.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("evaluate row %d: %w", testIdx[i], err)
		}
		predicted[i] = pred.Label
	}

	p.Training = TrainingInfo{
		TrainedAt:   time.Now().UTC(),
		Rows:        len(set.Rows),
		TrainRows:   len(trainRows),
		TestRows:    len(testRows),
		TestRatio:   cfg.TestRatio,
		Seed:        cfg.Seed,
		ClassCounts: ClassCounts(set.Labels),
		Evaluation:  Evaluate(predicted, testLabels),
	}
	return p, nil
}

func pick(set TrainingSet, idx []int) ([]Row, []int) {
	rows := make([]Row, len(idx))
	labels := make([]int, len(idx))
	for i, j := range idx {
		rows[i] = set.Rows[j]
		labels[i] = set.Labels[j]
	}
	return rows, labels
}
