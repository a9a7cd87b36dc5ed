package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/nightlight/internal/control"
	"github.com/sweeney/nightlight/internal/logic"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	st := &logic.ControllerState{
		Current: logic.Appearance{Color: logic.Color{R: 255}, Ratio: 100},
		Synced:  true,
	}
	rep := control.Report{
		Trusted:         true,
		ResyncAttempted: true,
		Wrote:           true,
		Events: []logic.Event{
			{Type: logic.EventTimeSynced},
			{Type: logic.EventAppearanceChanged},
		},
	}
	m.Observe(rep, st, 2*time.Millisecond)

	if got := testutil.ToFloat64(m.writes); got != 1 {
		t.Fatalf("expected writes 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.resyncs.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected ok resyncs 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("APPEARANCE_CHANGED")); got != 1 {
		t.Fatalf("expected APPEARANCE_CHANGED 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.trusted); got != 1 {
		t.Fatalf("expected trusted 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.ratio); got != 100 {
		t.Fatalf("expected ratio 100, got %f", got)
	}
	if got := testutil.ToFloat64(m.displayed.WithLabelValues("r")); got != 100 {
		t.Fatalf("expected displayed red 100, got %f", got)
	}
	if samples := testutil.CollectAndCount(m.tickDuration); samples != 1 {
		t.Fatalf("expected tick histogram to record 1 sample, got %d", samples)
	}
}

func TestObserveFailures(t *testing.T) {
	m := New(prometheus.NewRegistry())
	st := logic.NewControllerState()

	m.Observe(control.Report{
		ResyncAttempted: true,
		ResyncErr:       errors.New("timeout"),
		WriteErr:        errors.New("busy"),
	}, st, time.Millisecond)

	if got := testutil.ToFloat64(m.resyncs.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected failed resyncs 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.writeErrors); got != 1 {
		t.Fatalf("expected write errors 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.writes); got != 0 {
		t.Fatalf("expected writes 0, got %f", got)
	}
	if got := testutil.ToFloat64(m.synced); got != 0 {
		t.Fatalf("expected synced 0, got %f", got)
	}
}

func TestObserveWithoutResync(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Observe(control.Report{}, logic.NewControllerState(), 0)

	if n := testutil.CollectAndCount(m.resyncs); n != 0 {
		t.Fatalf("expected no resync series, got %d", n)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Observe(control.Report{Wrote: true}, logic.NewControllerState(), 0)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "nightlight_writes_total 1") {
		t.Fatalf("metrics output missing writes counter:\n%s", body)
	}
}
