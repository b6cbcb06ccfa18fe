// Package statsbomb builds pass datasets from the StatsBomb open-data
// repository: every pass from one player to another across a set of
// seasons, cached as CSV so the hundreds of event files are read once.
package statsbomb

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"statscrape/internal/dataset"
	"statscrape/internal/metrics"
	"statscrape/internal/source"
)

// DefaultBaseURL is the raw open-data tree.
const DefaultBaseURL = "https://raw.githubusercontent.com/statsbomb/open-data/master/data"

// OutcomeIncomplete is the pass outcome counted as unsuccessful. A pass with
// no outcome at all is complete.
const OutcomeIncomplete = "Incomplete"

// Pass dataset columns, in order.
const (
	FieldMatchID     = "match_id"
	FieldLocation    = "location"
	FieldEndLocation = "pass_end_location"
	FieldOutcome     = "pass_outcome"
)

// PassFields is the schema of a pass dataset.
var PassFields = []dataset.Field{
	{Name: FieldMatchID, Kind: dataset.KindInt},
	{Name: FieldLocation, Kind: dataset.KindString},
	{Name: FieldEndLocation, Kind: dataset.KindString},
	{Name: FieldOutcome, Kind: dataset.KindString},
}

// Client reads open-data files through a source.Resolver, so the same
// caching and pacing used for HTML pages apply here.
type Client struct {
	Resolver source.Resolver
	BaseURL  string
	Job      string
	Logger   *slog.Logger
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) url(parts ...string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/" + strings.Join(parts, "/")
}

type match struct {
	MatchID int64 `json:"match_id"`
}

type named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Event is the subset of a StatsBomb event a pass map needs.
type Event struct {
	Type     named     `json:"type"`
	Player   *named    `json:"player,omitempty"`
	Location []float64 `json:"location,omitempty"`
	Pass     *struct {
		Recipient   *named    `json:"recipient,omitempty"`
		EndLocation []float64 `json:"end_location,omitempty"`
		Outcome     *named    `json:"outcome,omitempty"`
	} `json:"pass,omitempty"`
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	doc, err := c.Resolver.Resolve(ctx, source.Source{URL: url})
	if err != nil {
		return nil, err
	}
	return doc.Body, nil
}

// MatchIDs lists the matches of one competition season.
func (c *Client) MatchIDs(ctx context.Context, competition, season int) ([]int64, error) {
	u := c.url("matches", strconv.Itoa(competition), strconv.Itoa(season)+".json")
	body, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = streamArray(ctx, bytes.NewReader(body), func(_ int, m match) error {
		ids = append(ids, m.MatchID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	return ids, nil
}

// Events streams the events of one match to emit.
func (c *Client) Events(ctx context.Context, matchID int64, emit func(Event) error) error {
	u := c.url("events", strconv.FormatInt(matchID, 10)+".json")
	body, err := c.fetch(ctx, u)
	if err != nil {
		return err
	}
	if err := streamArray(ctx, bytes.NewReader(body), func(_ int, e Event) error { return emit(e) }); err != nil {
		return fmt.Errorf("%s: %w", u, err)
	}
	return nil
}

// PassQuery selects passes from Passer to Recipient (full StatsBomb names).
type PassQuery struct {
	Competition int
	Seasons     []int
	Passer      string
	Recipient   string
}

// Validate checks that the query can select anything.
func (q PassQuery) Validate() error {
	if len(q.Seasons) == 0 {
		return fmt.Errorf("statsbomb: no seasons")
	}
	if strings.TrimSpace(q.Passer) == "" || strings.TrimSpace(q.Recipient) == "" {
		return fmt.Errorf("statsbomb: passer and recipient are required")
	}
	return nil
}

// keep reports whether e is a pass from the query's passer to its recipient.
func (q PassQuery) keep(e Event) bool {
	return e.Type.Name == "Pass" &&
		e.Player != nil && e.Player.Name == q.Passer &&
		e.Pass != nil && e.Pass.Recipient != nil && e.Pass.Recipient.Name == q.Recipient
}

// Passes fetches every match of every season in order and returns the
// matching passes.
func (c *Client) Passes(ctx context.Context, q PassQuery) (*dataset.Dataset, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ds, err := dataset.New(PassFields)
	if err != nil {
		return nil, err
	}

	for _, season := range q.Seasons {
		ids, err := c.MatchIDs(ctx, q.Competition, season)
		if err != nil {
			return nil, err
		}
		c.logger().Info("season", "competition", q.Competition, "season", season, "matches", len(ids))

		for _, id := range ids {
			err := c.Events(ctx, id, func(e Event) error {
				if !q.keep(e) {
					return nil
				}
				outcome := ""
				if e.Pass.Outcome != nil {
					outcome = e.Pass.Outcome.Name
				}
				return ds.Append(id, formatCoords(e.Location), formatCoords(e.Pass.EndLocation), outcome)
			})
			if err != nil {
				return nil, err
			}
		}
	}
	metrics.RecordRows(c.Job, "passes", ds.Len())
	return ds, nil
}

// LoadOrFetch returns the cached pass dataset at path when it exists and
// otherwise fetches it and writes the cache. A present cache suppresses all
// network access.
func (c *Client) LoadOrFetch(ctx context.Context, path string, q PassQuery) (ds *dataset.Dataset, cached bool, err error) {
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		ds, err := ReadPassesCSV(f)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", path, err)
		}
		metrics.RecordCache(c.Job, true)
		return ds, true, nil
	case !os.IsNotExist(err):
		return nil, false, err
	}
	metrics.RecordCache(c.Job, false)

	ds, err = c.Passes(ctx, q)
	if err != nil {
		return nil, false, err
	}
	if err := writeCSVAtomic(path, ds); err != nil {
		return nil, false, err
	}
	c.logger().Info("passes cached", "path", path, "rows", ds.Len())
	return ds, false, nil
}

// ReadPassesCSV parses a pass cache written by LoadOrFetch. Extra columns
// are ignored; the four pass columns must be present.
func ReadPassesCSV(r io.Reader) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	idx := make([]int, len(PassFields))
	for i, f := range PassFields {
		p, ok := pos[f.Name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", f.Name)
		}
		idx[i] = p
	}

	ds, err := dataset.New(PassFields)
	if err != nil {
		return nil, err
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idx[0]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: match_id: %w", line, err)
		}
		if err := ds.Append(id, rec[idx[1]], rec[idx[2]], rec[idx[3]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return ds, nil
}

// Summary is the headline numbers of a pass map.
type Summary struct {
	Attempted   int     `json:"attempted"`
	Incomplete  int     `json:"incomplete"`
	SuccessRate float64 `json:"success_rate"` // percent
}

// Summarize counts attempted and incomplete passes. An empty dataset yields
// dataset.ErrEmpty since a success rate over zero passes is undefined.
func Summarize(ds *dataset.Dataset) (Summary, error) {
	outcomes, err := ds.Strings(FieldOutcome)
	if err != nil {
		return Summary{}, err
	}
	if len(outcomes) == 0 {
		return Summary{}, fmt.Errorf("summarize passes: %w", dataset.ErrEmpty)
	}
	s := Summary{Attempted: len(outcomes)}
	for _, o := range outcomes {
		if o == OutcomeIncomplete {
			s.Incomplete++
		}
	}
	s.SuccessRate = 100 - float64(s.Incomplete)/float64(s.Attempted)*100
	return s, nil
}

// formatCoords renders a coordinate pair as "[x, y]", keeping a ".0" on
// whole numbers so cached files read the same as the upstream lists.
func formatCoords(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseCoords reverses formatCoords.
func ParseCoords(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("coords %q: not a list", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, nil
	}
	var out []float64
	for _, p := range strings.Split(inner, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("coords %q: %w", s, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func writeCSVAtomic(path string, ds *dataset.Dataset) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := ds.WriteCSV(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
