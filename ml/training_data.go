package ml

// GenerateLabels collapses outcome codes into the binary survival label:
// LivedOutcome becomes 1, anything else (died, euthanized, missing) becomes 0.
func GenerateLabels(outcomes []float64) ([]int, error) {
	if len(outcomes) == 0 {
		return nil, trainingDataError("no outcomes")
	}
	labels := make([]int, len(outcomes))
	for i, outcome := range outcomes {
		if outcome == LivedOutcome {
			labels[i] = 1
		}
	}
	return labels, nil
}

// ClassCounts returns how many labels fall in class 0 and class 1.
func ClassCounts(labels []int) [2]int {
	var counts [2]int
	for _, label := range labels {
		if label == 1 {
			counts[1]++
		} else {
			counts[0]++
		}
	}
	return counts
}

// TrainingSet is a labelled table ready for fitting.
type TrainingSet struct {
	Rows   []Row
	Labels []int
}

// BuildTrainingSet pairs rows with labels derived from outcomes and checks
// that both classes are present often enough for a stratified split.
func BuildTrainingSet(rows []Row, outcomes []float64) (TrainingSet, error) {
	if len(rows) == 0 {
		return TrainingSet{}, trainingDataError("dataset has no rows")
	}
	if len(rows) != len(outcomes) {
		return TrainingSet{}, trainingDataError("%d rows but %d outcomes", len(rows), len(outcomes))
	}
	labels, err := GenerateLabels(outcomes)
	if err != nil {
		return TrainingSet{}, err
	}
	counts := ClassCounts(labels)
	for class, n := range counts {
		if n == 0 {
			return TrainingSet{}, trainingDataError("no rows with label %d", class)
		}
		if n < 2 {
			return TrainingSet{}, trainingDataError("label %d has a single row, stratified split impossible", class)
		}
	}
	return TrainingSet{Rows: rows, Labels: labels}, nil
}
