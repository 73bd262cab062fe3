package ml

import (
	"sort"
	"strings"
)

// LivedOutcome is the outcome code that maps to the positive (survived) label.
const LivedOutcome = 1.0

// OutcomeColumn is the multi-valued outcome column of the training data.
const OutcomeColumn = "outcome"

// Code is one documented value of a categorical column.
type Code struct {
	Value float64 `json:"value"`
	Name  string  `json:"name"`
}

// CodeBook maps categorical columns to their documented codes. String values
// found in exported datasets (for example "yes", "adult", "lived") are decoded
// through Name.
var CodeBook = map[string][]Code{
	"surgery": {{1, "yes"}, {2, "no"}},
	"age":     {{1, "adult"}, {9, "young"}},
	"temp_of_extremities": {
		{1, "normal"}, {2, "warm"}, {3, "cool"}, {4, "cold"},
	},
	"peripheral_pulse": {
		{1, "normal"}, {2, "increased"}, {3, "reduced"}, {4, "absent"},
	},
	"mucous_membrane": {
		{1, "normal_pink"}, {2, "bright_pink"}, {3, "pale_pink"},
		{4, "pale_cyanotic"}, {5, "bright_red"}, {6, "dark_cyanotic"},
	},
	"capillary_refill_time": {{1, "less_3_sec"}, {2, "more_3_sec"}},
	"pain": {
		{1, "alert"}, {2, "depressed"}, {3, "mild_pain"},
		{4, "severe_pain"}, {5, "extreme_pain"},
	},
	"peristalsis": {
		{1, "hypermotile"}, {2, "normal"}, {3, "hypomotile"}, {4, "absent"},
	},
	"abdominal_distention": {
		{1, "none"}, {2, "slight"}, {3, "moderate"}, {4, "severe"},
	},
	"nasogastric_tube":   {{1, "none"}, {2, "slight"}, {3, "significant"}},
	"nasogastric_reflux": {{1, "none"}, {2, "more_1_liter"}, {3, "less_1_liter"}},
	"rectal_exam_feces": {
		{1, "normal"}, {2, "increased"}, {3, "decreased"}, {4, "absent"},
	},
	"abdomen": {
		{1, "normal"}, {2, "other"}, {3, "firm"},
		{4, "distend_small"}, {5, "distend_large"},
	},
	"abdomo_appearance": {{1, "clear"}, {2, "cloudy"}, {3, "serosanguious"}},
	"surgical_lesion":   {{1, "yes"}, {2, "no"}},
	"cp_data":           {{1, "yes"}, {2, "no"}},
	OutcomeColumn:       {{1, "lived"}, {2, "died"}, {3, "euthanized"}},
}

// DecodeCode looks up the numeric code for a named value of column.
func DecodeCode(column, name string) (float64, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	for _, c := range CodeBook[column] {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

// CodeName returns the documented name for value in column, or "".
func CodeName(column string, value float64) string {
	for _, c := range CodeBook[column] {
		if c.Value == value {
			return c.Name
		}
	}
	return ""
}

// CodedColumns returns the columns that have a code book entry, sorted.
func CodedColumns() []string {
	names := make([]string, 0, len(CodeBook))
	for name := range CodeBook {
		if name == OutcomeColumn {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
