package ml

import (
	"math"
	"slices"
)

// Row is one case keyed by column name. Missing values are NaN.
type Row map[string]float64

// Missing returns the missing-value marker used inside rows.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Float returns a pointer to v, for building records by hand.
func Float(v float64) *float64 {
	return &v
}

// FeatureRecord holds the clinical observations for one horse.
// A nil field is an explicitly missing observation.
type FeatureRecord struct {
	Surgery             *float64 `json:"surgery" validate:"omitempty,finite,gte=0"`
	Age                 *float64 `json:"age" validate:"omitempty,finite,gte=0"`
	RectalTemp          *float64 `json:"rectal_temp" validate:"omitempty,finite,gte=30,lte=45"`
	Pulse               *float64 `json:"pulse" validate:"omitempty,finite,gte=20,lte=250"`
	RespiratoryRate     *float64 `json:"respiratory_rate" validate:"omitempty,finite,gte=4,lte=150"`
	TempOfExtremities   *float64 `json:"temp_of_extremities" validate:"omitempty,finite,gte=0"`
	PeripheralPulse     *float64 `json:"peripheral_pulse" validate:"omitempty,finite,gte=0"`
	MucousMembrane      *float64 `json:"mucous_membrane" validate:"omitempty,finite,gte=0"`
	CapillaryRefillTime *float64 `json:"capillary_refill_time" validate:"omitempty,finite,gte=0"`
	Pain                *float64 `json:"pain" validate:"omitempty,finite,gte=0"`
	Peristalsis         *float64 `json:"peristalsis" validate:"omitempty,finite,gte=0"`
	AbdominalDistention *float64 `json:"abdominal_distention" validate:"omitempty,finite,gte=0"`
	NasogastricTube     *float64 `json:"nasogastric_tube" validate:"omitempty,finite,gte=0"`
	NasogastricReflux   *float64 `json:"nasogastric_reflux" validate:"omitempty,finite,gte=0"`
	NasogastricRefluxPH *float64 `json:"nasogastric_reflux_ph" validate:"omitempty,finite,gte=0,lte=14"`
	RectalExamFeces     *float64 `json:"rectal_exam_feces" validate:"omitempty,finite,gte=0"`
	Abdomen             *float64 `json:"abdomen" validate:"omitempty,finite,gte=0"`
	PackedCellVolume    *float64 `json:"packed_cell_volume" validate:"omitempty,finite,gte=10,lte=80"`
	TotalProtein        *float64 `json:"total_protein" validate:"omitempty,finite,gte=0,lte=120"`
	AbdomoAppearance    *float64 `json:"abdomo_appearance" validate:"omitempty,finite,gte=0"`
	AbdomoProtein       *float64 `json:"abdomo_protein" validate:"omitempty,finite,gte=0"`
	SurgicalLesion      *float64 `json:"surgical_lesion" validate:"omitempty,finite,gte=0"`
	Lesion1             *float64 `json:"lesion_1" validate:"omitempty,finite,gte=0"`
	Lesion2             *float64 `json:"lesion_2" validate:"omitempty,finite,gte=0"`
	Lesion3             *float64 `json:"lesion_3" validate:"omitempty,finite,gte=0"`
	CPData              *float64 `json:"cp_data" validate:"omitempty,finite,gte=0"`
}

type column struct {
	name  string
	value **float64
}

// columns lists the record fields in schema order.
func (r *FeatureRecord) columns() []column {
	return []column{
		{"surgery", &r.Surgery},
		{"age", &r.Age},
		{"rectal_temp", &r.RectalTemp},
		{"pulse", &r.Pulse},
		{"respiratory_rate", &r.RespiratoryRate},
		{"temp_of_extremities", &r.TempOfExtremities},
		{"peripheral_pulse", &r.PeripheralPulse},
		{"mucous_membrane", &r.MucousMembrane},
		{"capillary_refill_time", &r.CapillaryRefillTime},
		{"pain", &r.Pain},
		{"peristalsis", &r.Peristalsis},
		{"abdominal_distention", &r.AbdominalDistention},
		{"nasogastric_tube", &r.NasogastricTube},
		{"nasogastric_reflux", &r.NasogastricReflux},
		{"nasogastric_reflux_ph", &r.NasogastricRefluxPH},
		{"rectal_exam_feces", &r.RectalExamFeces},
		{"abdomen", &r.Abdomen},
		{"packed_cell_volume", &r.PackedCellVolume},
		{"total_protein", &r.TotalProtein},
		{"abdomo_appearance", &r.AbdomoAppearance},
		{"abdomo_protein", &r.AbdomoProtein},
		{"surgical_lesion", &r.SurgicalLesion},
		{"lesion_1", &r.Lesion1},
		{"lesion_2", &r.Lesion2},
		{"lesion_3", &r.Lesion3},
		{"cp_data", &r.CPData},
	}
}

// NumericalFeatures are the continuous columns: median-imputed and standard-scaled.
// Every other schema column is categorical.
var NumericalFeatures = []string{
	"rectal_temp",
	"pulse",
	"respiratory_rate",
	"packed_cell_volume",
	"total_protein",
}

// FeatureNames returns the schema columns in their fixed order.
func FeatureNames() []string {
	cols := (&FeatureRecord{}).columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// CategoricalFeatures returns FeatureNames minus NumericalFeatures, in schema order.
func CategoricalFeatures() []string {
	return difference(FeatureNames(), NumericalFeatures)
}

func difference(all, exclude []string) []string {
	out := make([]string, 0, len(all))
	for _, name := range all {
		if !slices.Contains(exclude, name) {
			out = append(out, name)
		}
	}
	return out
}

// Row converts the record into a full row. Every schema column is present;
// nil fields become the missing marker.
func (r FeatureRecord) Row() Row {
	cols := r.columns()
	row := make(Row, len(cols))
	for _, c := range cols {
		if *c.value == nil {
			row[c.name] = Missing()
			continue
		}
		row[c.name] = **c.value
	}
	return row
}

// RecordFromRow builds a record from a row. Missing or absent columns stay nil;
// columns outside the schema are ignored.
func RecordFromRow(row Row) FeatureRecord {
	var rec FeatureRecord
	for _, c := range rec.columns() {
		v, ok := row[c.name]
		if !ok || IsMissing(v) {
			continue
		}
		*c.value = Float(v)
	}
	return rec
}
