package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type event struct {
	kind   string
	name   string
	value  float64
	labels Labels
}

type recorder struct {
	mu     sync.Mutex
	events []event
	flushN int
}

func (r *recorder) IncCounter(name string, delta float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"counter", name, delta, l})
}

func (r *recorder) ObserveHistogram(name string, v float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"histogram", name, v, l})
}

func (r *recorder) Flush() error {
	r.flushN++
	return nil
}

func (r *recorder) find(name string) []event {
	var out []event
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

// The tests below swap the process-wide backend, so they do not run in parallel.

// TestRecordHTTP_Error counts failures under the error counter and skips
// response histograms when no response arrived.
func TestRecordHTTP_Error(t *testing.T) {
	r := &recorder{}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	RecordHTTP("squad", 0, errors.New("dial"), time.Second, 0, 0)

	if got := r.find(HTTPErrorsTotal); len(got) != 1 || got[0].labels["status"] != "none" {
		t.Fatalf("unexpected error counter: %+v", got)
	}
	if got := r.find(HTTPResponseDuration); len(got) != 0 {
		t.Fatalf("expected no response histogram, got %+v", got)
	}
}

// TestRecordHTTP_Non2xx counts a 404 as an error but still records its body.
func TestRecordHTTP_Non2xx(t *testing.T) {
	r := &recorder{}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	RecordHTTP("squad", 404, nil, time.Second, time.Millisecond, 12)

	if got := r.find(HTTPErrorsTotal); len(got) != 1 || got[0].labels["status"] != "404" {
		t.Fatalf("unexpected error counter: %+v", got)
	}
	if got := r.find(HTTPDownloadBytes); len(got) != 1 || got[0].value != 12 {
		t.Fatalf("unexpected bytes histogram: %+v", got)
	}
}

// TestRecordStepRowsCache covers the remaining helpers and Flush delegation.
func TestRecordStepRowsCache(t *testing.T) {
	r := &recorder{}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("squad", "extract", nil, 2*time.Second)
	RecordRows("squad", "kept", 3)
	RecordRows("squad", "kept", 0)
	RecordCache("squad", true)

	if got := r.find(StepTotal); len(got) != 1 || got[0].labels["status"] != "ok" {
		t.Fatalf("step counter: %+v", got)
	}
	if got := r.find(StepDurationSeconds); len(got) != 1 || got[0].value != 2 {
		t.Fatalf("step duration: %+v", got)
	}
	if got := r.find(RowsTotal); len(got) != 1 || got[0].value != 3 {
		t.Fatalf("rows: %+v", got)
	}
	if got := r.find(CacheTotal); len(got) != 1 || got[0].labels["result"] != "hit" {
		t.Fatalf("cache: %+v", got)
	}
	if err := Flush(); err != nil || r.flushN != 1 {
		t.Fatalf("flush: err=%v n=%d", err, r.flushN)
	}
}
