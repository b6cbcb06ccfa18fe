package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Bounds are per-parameter ranges (e.g. radar axis limits), aligned by index.
type Bounds struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// Len returns the number of parameters.
func (b Bounds) Len() int { return len(b.Min) }

// Validate checks that Min and Max are aligned and ordered.
func (b Bounds) Validate() error {
	if len(b.Min) != len(b.Max) {
		return fmt.Errorf("bounds: %d minimums vs %d maximums", len(b.Min), len(b.Max))
	}
	for i := range b.Min {
		if b.Min[i] > b.Max[i] {
			return fmt.Errorf("bounds: parameter %d has min %v > max %v", i, b.Min[i], b.Max[i])
		}
	}
	return nil
}

// WriteBoundsCSV writes bounds as two CSV rows: minimums then maximums.
func WriteBoundsCSV(w io.Writer, b Bounds) error {
	if err := b.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	for _, row := range [][]float64{b.Min, b.Max} {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBoundsCSV parses the two-row format written by WriteBoundsCSV.
func ReadBoundsCSV(r io.Reader) (Bounds, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return Bounds{}, fmt.Errorf("read bounds csv: %w", err)
	}
	if len(recs) != 2 {
		return Bounds{}, fmt.Errorf("read bounds csv: want 2 rows, got %d", len(recs))
	}

	parse := func(rec []string) ([]float64, error) {
		out := make([]float64, 0, len(rec))
		for _, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	var b Bounds
	if b.Min, err = parse(recs[0]); err != nil {
		return Bounds{}, fmt.Errorf("read bounds csv: minimums: %w", err)
	}
	if b.Max, err = parse(recs[1]); err != nil {
		return Bounds{}, fmt.Errorf("read bounds csv: maximums: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// LoadBoundsFile reads a bounds cache file. ok is false when the file does not exist.
func LoadBoundsFile(path string) (b Bounds, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Bounds{}, false, nil
		}
		return Bounds{}, false, err
	}
	defer f.Close()

	b, err = ReadBoundsCSV(f)
	if err != nil {
		return Bounds{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return b, true, nil
}

// SaveBoundsFile writes a bounds cache file, creating parent directories.
func SaveBoundsFile(path string, b Bounds) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBoundsCSV(f, b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
