package extracthtml

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"statscrape/internal/dataset"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText canonicalises cell text: NFC composition (so "Pedri" and
// accented names compare equal however the page encodes them), non-breaking
// spaces folded to spaces, surrounding whitespace trimmed.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}

// Convert coerces located text according to rule.
//
// Order of operations:
//  1. normalise the text;
//  2. a sentinel match returns its fixed value (never an error);
//  3. Strip substrings are removed;
//  4. the text is parsed according to rule.Type.
//
// now is only consulted for years_since.
func Convert(text string, rule FieldRule, now time.Time) (any, error) {
	s := NormalizeText(text)

	for _, sn := range rule.Sentinels {
		if s == NormalizeText(sn.Text) {
			switch rule.Kind() {
			case dataset.KindInt:
				return int64(sn.Value), nil
			case dataset.KindFloat:
				return sn.Value, nil
			default:
				return nil, fmt.Errorf("sentinel on non-numeric type %q", rule.Type)
			}
		}
	}

	for _, cut := range rule.Strip {
		s = strings.ReplaceAll(s, cut, "")
	}
	s = strings.TrimSpace(s)

	switch rule.Type {
	case "", TypeString:
		return s, nil

	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil

	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return f, nil

	case TypeYearsSince:
		if rule.Layout == "" {
			return nil, fmt.Errorf("years_since requires a layout")
		}
		t, err := time.Parse(rule.Layout, s)
		if err != nil {
			return nil, err
		}
		return int64(now.Year() - t.Year()), nil

	default:
		return nil, fmt.Errorf("unknown type %q", rule.Type)
	}
}
