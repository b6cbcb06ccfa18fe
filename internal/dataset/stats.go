package dataset

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when statistics are requested over zero rows.
var ErrEmpty = errors.New("dataset: no rows")

// Summary holds descriptive statistics for one numeric field.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Summarize computes count/min/max/mean for a numeric field.
func (d *Dataset) Summarize(name string) (Summary, error) {
	vals, err := d.Floats(name)
	if err != nil {
		return Summary{}, err
	}
	if len(vals) == 0 {
		return Summary{}, fmt.Errorf("summarize %q: %w", name, ErrEmpty)
	}

	s := Summary{Count: len(vals), Min: vals[0], Max: vals[0]}
	var sum float64
	for _, v := range vals {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Mean = sum / float64(len(vals))
	return s, nil
}
