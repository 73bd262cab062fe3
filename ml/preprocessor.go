package ml

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// NumericColumn holds the frozen imputation and scaling statistics of one numerical column.
type NumericColumn struct {
	Name     string
	Median   float64
	Mean     float64
	Scale    float64
	Observed bool
}

// CategoricalColumn holds the frozen mode and vocabulary of one categorical column.
type CategoricalColumn struct {
	Name       string
	Mode       float64
	Categories []float64
}

// Preprocessor is the column-wise transform in front of the tree. Numerical
// columns are median-imputed then standardized. Categorical columns are
// mode-imputed then one-hot encoded; values outside the training vocabulary
// encode as all zeros.
type Preprocessor struct {
	Numeric     []NumericColumn
	Categorical []CategoricalColumn
}

// Fit computes every statistic from rows. Only training rows should be passed.
func (p *Preprocessor) Fit(rows []Row, numeric, categorical []string) error {
	if len(rows) == 0 {
		return trainingDataError("no rows to fit preprocessor")
	}
	p.Numeric = make([]NumericColumn, 0, len(numeric))
	for _, name := range numeric {
		p.Numeric = append(p.Numeric, fitNumeric(name, columnValues(rows, name)))
	}
	p.Categorical = make([]CategoricalColumn, 0, len(categorical))
	for _, name := range categorical {
		p.Categorical = append(p.Categorical, fitCategorical(name, columnValues(rows, name)))
	}
	return nil
}

func columnValues(rows []Row, name string) []float64 {
	values := make([]float64, len(rows))
	for i, row := range rows {
		v, ok := row[name]
		if !ok {
			v = Missing()
		}
		values[i] = v
	}
	return values
}

func observed(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

func fitNumeric(name string, values []float64) NumericColumn {
	present := observed(values)
	if len(present) == 0 {
		return NumericColumn{Name: name, Scale: 1}
	}
	col := NumericColumn{Name: name, Median: median(present), Observed: true}
	imputed := make([]float64, len(values))
	for i, v := range values {
		if IsMissing(v) {
			v = col.Median
		}
		imputed[i] = v
	}
	mean, variance := stat.PopMeanVariance(imputed, nil)
	col.Mean = mean
	col.Scale = math.Sqrt(variance)
	if col.Scale == 0 || math.IsNaN(col.Scale) {
		col.Scale = 1
	}
	return col
}

func fitCategorical(name string, values []float64) CategoricalColumn {
	present := observed(values)
	if len(present) == 0 {
		return CategoricalColumn{Name: name, Mode: Missing()}
	}
	col := CategoricalColumn{Name: name, Mode: mode(present)}
	seen := make(map[float64]struct{})
	for _, v := range values {
		if IsMissing(v) {
			v = col.Mode
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			col.Categories = append(col.Categories, v)
		}
	}
	sort.Float64s(col.Categories)
	return col
}

// Columns returns the input columns the preprocessor was fit on.
func (p *Preprocessor) Columns() []string {
	names := make([]string, 0, len(p.Numeric)+len(p.Categorical))
	for _, c := range p.Numeric {
		names = append(names, c.Name)
	}
	for _, c := range p.Categorical {
		names = append(names, c.Name)
	}
	return names
}

// OutputNames names every column of the transformed matrix.
func (p *Preprocessor) OutputNames() []string {
	names := make([]string, 0, p.Width())
	for _, c := range p.Numeric {
		names = append(names, c.Name)
	}
	for _, c := range p.Categorical {
		for _, v := range c.Categories {
			names = append(names, c.Name+"="+strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return names
}

// Width is the number of transformed columns.
func (p *Preprocessor) Width() int {
	width := len(p.Numeric)
	for _, c := range p.Categorical {
		width += len(c.Categories)
	}
	return width
}

// Transform applies the frozen statistics to one row. The row must contain
// every fitted column.
func (p *Preprocessor) Transform(row Row) ([]float64, error) {
	if len(p.Numeric)+len(p.Categorical) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, 0, p.Width())
	for _, c := range p.Numeric {
		v, ok := row[c.Name]
		if !ok {
			return nil, &SchemaError{Column: c.Name, Reason: "column missing"}
		}
		if !c.Observed {
			out = append(out, 0)
			continue
		}
		if IsMissing(v) {
			v = c.Median
		}
		out = append(out, (v-c.Mean)/c.Scale)
	}
	for _, c := range p.Categorical {
		v, ok := row[c.Name]
		if !ok {
			return nil, &SchemaError{Column: c.Name, Reason: "column missing"}
		}
		if IsMissing(v) {
			v = c.Mode
		}
		hit := -1
		if i := sort.SearchFloat64s(c.Categories, v); i < len(c.Categories) && c.Categories[i] == v {
			hit = i
		}
		for i := range c.Categories {
			if i == hit {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

// TransformAll transforms every row.
func (p *Preprocessor) TransformAll(rows []Row) ([][]float64, error) {
	matrix := make([][]float64, len(rows))
	for i, row := range rows {
		vector, err := p.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		matrix[i] = vector
	}
	return matrix, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mode returns the most frequent value; ties go to the smallest value.
func mode(values []float64) float64 {
	counts := make(map[float64]int)
	for _, v := range values {
		counts[v]++
	}
	best := math.Inf(1)
	bestCount := 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best = v
			bestCount = n
		}
	}
	return best
}
