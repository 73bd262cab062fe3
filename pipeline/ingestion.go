package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"horsecolic/ml"

	"github.com/spf13/cast"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// IDColumn carries the case identifier. It is never a feature.
const IDColumn = "hospital_number"

// DefaultAliases maps the long UCI header names onto schema columns.
var DefaultAliases = map[string]string{
	"rectal_temperature":             "rectal_temp",
	"temperature_of_extremities":     "temp_of_extremities",
	"mucous_membranes":               "mucous_membrane",
	"abdominal_distension":           "abdominal_distention",
	"rectal_examination_feces":       "rectal_exam_feces",
	"abdominocentesis_appearance":    "abdomo_appearance",
	"abdominocentesis_total_protein": "abdomo_protein",
	"abdomcentesis_total_protein":    "abdomo_protein",
	"type_of_lesion":                 "lesion_1",
	"type_of_lesion_1":               "lesion_1",
	"type_of_lesion_2":               "lesion_2",
	"type_of_lesion_3":               "lesion_3",
	"hospital_id":                    IDColumn,
}

// MissingMarkers are the cell spellings read as a missing observation.
var MissingMarkers = []string{"", "?", "NA", "NaN", "nan", "None"}

// IngestionConfig controls LoadCSV.
type IngestionConfig struct {
	Aliases map[string]string
	// IgnoreColumns are dropped silently instead of failing the load.
	IgnoreColumns []string
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{Aliases: DefaultAliases}
}

// Record is one parsed CSV line.
type Record struct {
	ID      string
	Line    int
	Row     ml.Row
	Outcome float64
}

func (r *Record) clone() *Record {
	row := make(ml.Row, len(r.Row))
	for k, v := range r.Row {
		row[k] = v
	}
	c := *r
	c.Row = row
	return &c
}

// Dataset is a parsed training table.
type Dataset struct {
	Records    []*Record
	HasOutcome bool
	Stats      IngestionStats
}

// IngestionStats counts what LoadCSV saw.
type IngestionStats struct {
	TotalRows    int            `json:"total_rows"`
	DecodedCells int            `json:"decoded_cells"`
	MissingCells map[string]int `json:"missing_cells"`
	Ignored      []string       `json:"ignored_columns,omitempty"`
}

// Rows returns the feature rows in file order.
func (d *Dataset) Rows() []ml.Row {
	rows := make([]ml.Row, len(d.Records))
	for i, r := range d.Records {
		rows[i] = r.Row
	}
	return rows
}

// Outcomes returns the raw outcome codes, or nil when the file had no outcome column.
func (d *Dataset) Outcomes() []float64 {
	if !d.HasOutcome {
		return nil
	}
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Outcome
	}
	return out
}

var headerSeparators = regexp.MustCompile(`[\s\-./]+`)

// NormalizeHeader lowercases a header and joins its words with single underscores.
func NormalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = headerSeparators.ReplaceAllString(name, "_")
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path string, cfg IngestionConfig) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCSV(f, cfg)
}

// LoadCSV parses a horse colic table. The header must name every schema
// column; the outcome column is optional here and enforced by training.
func LoadCSV(r io.Reader, cfg IngestionConfig) (*Dataset, error) {
	if cfg.Aliases == nil {
		cfg.Aliases = DefaultAliases
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ml.ErrTrainingData)
		}
		return nil, fmt.Errorf("%w: read header: %v", ml.ErrTrainingData, err)
	}

	ds := &Dataset{Stats: IngestionStats{MissingCells: make(map[string]int)}}
	columns, err := resolveHeader(header, cfg, ds)
	if err != nil {
		return nil, err
	}

	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ml.ErrTrainingData, err)
		}
		line, _ := reader.FieldPos(0)
		rec := &Record{Line: line, Row: make(ml.Row, len(ml.FeatureNames())), Outcome: ml.Missing()}
		for i, name := range columns {
			if name == "" {
				continue
			}
			cell := strings.TrimSpace(cells[i])
			if name == IDColumn {
				rec.ID = cell
				continue
			}
			v, decodedCell, err := parseCell(name, cell)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ml.ErrTrainingData, line, name, err)
			}
			if decodedCell {
				ds.Stats.DecodedCells++
			}
			if ml.IsMissing(v) {
				ds.Stats.MissingCells[name]++
			}
			if name == ml.OutcomeColumn {
				rec.Outcome = v
				continue
			}
			rec.Row[name] = v
		}
		if rec.ID == "" {
			rec.ID = "row-" + strconv.Itoa(len(ds.Records)+1)
		}
		ds.Records = append(ds.Records, rec)
	}
	ds.Stats.TotalRows = len(ds.Records)
	return ds, nil
}

// resolveHeader maps each CSV column to a schema column, IDColumn, the
// outcome column, or "" when ignored.
func resolveHeader(header []string, cfg IngestionConfig, ds *Dataset) ([]string, error) {
	known := make(map[string]bool)
	for _, name := range ml.FeatureNames() {
		known[name] = true
	}
	ignored := make(map[string]bool)
	for _, name := range cfg.IgnoreColumns {
		ignored[NormalizeHeader(name)] = true
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool)
	var unknown []string
	for i, raw := range header {
		name := NormalizeHeader(raw)
		if alias, ok := cfg.Aliases[name]; ok {
			name = alias
		}
		switch {
		case ignored[name]:
			ds.Stats.Ignored = append(ds.Stats.Ignored, name)
			continue
		case name == ml.OutcomeColumn:
			ds.HasOutcome = true
		case name == IDColumn, known[name]:
		default:
			unknown = append(unknown, raw)
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ml.ErrTrainingData, name)
		}
		seen[name] = true
		columns[i] = name
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown columns %s", ml.ErrTrainingData, strings.Join(unknown, ", "))
	}

	var missing []string
	for _, name := range ml.FeatureNames() {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ml.ErrTrainingData, strings.Join(missing, ", "))
	}
	return columns, nil
}

// parseCell reads one cell as a number, a missing marker, or a code book name.
func parseCell(column, cell string) (float64, bool, error) {
	for _, marker := range MissingMarkers {
		if cell == marker {
			return ml.Missing(), false, nil
		}
	}
	if v, err := cast.ToFloat64E(cell); err == nil {
		if math.IsNaN(v) {
			return ml.Missing(), false, nil
		}
		return v, false, nil
	}
	if v, ok := ml.DecodeCode(column, cell); ok {
		return v, true, nil
	}
	return 0, false, fmt.Errorf("unrecognized value %q", cell)
}
