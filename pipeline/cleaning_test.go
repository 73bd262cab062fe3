package pipeline

import (
	"math"
	"testing"

	"horsecolic/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(id string, line int, rec ml.FeatureRecord, outcome float64) *Record {
	return &Record{ID: id, Line: line, Row: rec.Row(), Outcome: outcome}
}

func TestNewDataCleaner(t *testing.T) {
	cleaner := NewDataCleaner(nil)
	require.NotNil(t, cleaner)
	assert.Len(t, cleaner.rules, 3)
}

func TestRangeValidationRule(t *testing.T) {
	rule := NewRangeValidationRule()

	tests := []struct {
		name    string
		record  ml.FeatureRecord
		blanked []string
	}{
		{
			name:   "plausible values",
			record: ml.FeatureRecord{Pulse: ml.Float(72), RectalTemp: ml.Float(38.1)},
		},
		{
			name:    "pulse too high",
			record:  ml.FeatureRecord{Pulse: ml.Float(400), RectalTemp: ml.Float(38.1)},
			blanked: []string{"pulse"},
		},
		{
			name:    "infinite protein and negative code",
			record:  ml.FeatureRecord{TotalProtein: ml.Float(math.Inf(1)), Pain: ml.Float(-2)},
			blanked: []string{"total_protein", "pain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := rule.Apply(newRecord("1", 2, tt.record, 1))
			require.NoError(t, err)
			for _, name := range tt.blanked {
				assert.True(t, ml.IsMissing(out.Row[name]), name)
			}
			if len(tt.blanked) == 0 {
				assert.Equal(t, 72.0, out.Row["pulse"])
			}
		})
	}
}

func TestOutcomeValidationRule(t *testing.T) {
	rule := NewOutcomeValidationRule()
	for _, outcome := range []float64{1, 2, 3, ml.Missing()} {
		_, err := rule.Apply(newRecord("1", 2, ml.FeatureRecord{}, outcome))
		assert.NoError(t, err)
	}
	_, err := rule.Apply(newRecord("1", 2, ml.FeatureRecord{}, 7))
	assert.Error(t, err)
}

func TestDuplicateDetectionRule(t *testing.T) {
	rule := NewDuplicateDetectionRule()
	rec := ml.FeatureRecord{Pulse: ml.Float(50)}

	_, err := rule.Apply(newRecord("530101", 2, rec, 1))
	require.NoError(t, err)
	_, err = rule.Apply(newRecord("530101", 3, rec, 1))
	assert.Error(t, err)

	// same horse, different visit
	_, err = rule.Apply(newRecord("530101", 4, ml.FeatureRecord{Pulse: ml.Float(52)}, 1))
	assert.NoError(t, err)
}

func TestDataCleaner_Clean(t *testing.T) {
	cleaner := NewDataCleaner(nil)
	records := []*Record{
		newRecord("a", 2, ml.FeatureRecord{Pulse: ml.Float(60)}, 1),
		newRecord("b", 3, ml.FeatureRecord{Pulse: ml.Float(900)}, 2),
		newRecord("a", 4, ml.FeatureRecord{Pulse: ml.Float(60)}, 1),
		newRecord("c", 5, ml.FeatureRecord{Pulse: ml.Float(70)}, 9),
	}

	cleaned, issues := cleaner.Clean(records)
	require.Len(t, cleaned, 2)
	assert.Equal(t, "a", cleaned[0].ID)
	assert.True(t, ml.IsMissing(cleaned[1].Row["pulse"]))
	// input untouched
	assert.Equal(t, 900.0, records[1].Row["pulse"])

	stats := cleaner.GetStats()
	assert.Equal(t, int64(4), stats.TotalProcessed)
	assert.Equal(t, int64(2), stats.Passed)
	assert.Equal(t, int64(2), stats.Rejected)
	assert.Equal(t, int64(1), stats.Corrected)
	assert.Equal(t, int64(1), stats.Issues["duplicate_detection"])
	assert.Equal(t, int64(1), stats.Issues["outcome_validation"])

	require.Len(t, issues, 3)
	assert.Equal(t, issues, cleaner.GetIssues(0))
	assert.Len(t, cleaner.GetIssues(1), 1)

	severities := map[string]int{}
	for _, issue := range issues {
		severities[issue.Severity]++
	}
	assert.Equal(t, map[string]int{"low": 1, "high": 2}, severities)

	cleaner.ClearIssues()
	assert.Empty(t, cleaner.GetIssues(0))
}
