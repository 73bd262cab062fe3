package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"horsecolic/ml"
)

// WriteCSV writes the dataset with a canonical header: IDColumn, the schema
// columns in order, then the outcome when present. Missing values are empty cells.
func WriteCSV(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)
	header := append([]string{IDColumn}, ml.FeatureNames()...)
	if ds.HasOutcome {
		header = append(header, ml.OutcomeColumn)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	cells := make([]string, len(header))
	for _, rec := range ds.Records {
		cells[0] = rec.ID
		for i, name := range ml.FeatureNames() {
			cells[i+1] = formatCell(rec.Row[name])
		}
		if ds.HasOutcome {
			cells[len(cells)-1] = formatCell(rec.Outcome)
		}
		if err := writer.Write(cells); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSVFile writes the dataset to path through a temp file and rename.
func SaveCSVFile(path string, ds *Dataset) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, ds); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func formatCell(v float64) string {
	if ml.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
