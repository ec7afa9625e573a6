package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mikesmitty/max30003"
)

func TestObserveBatch(t *testing.T) {
	m := New()
	m.ObserveBatch(max30003.Batch{
		Samples: []max30003.Sample{
			{Value: 1, Tag: max30003.TagValid},
			{Value: 2, Tag: max30003.TagValid},
			{Value: 3, Tag: max30003.TagLastValid},
		},
		Terminal: max30003.TerminalEmpty,
	})
	m.ObserveBatch(max30003.Batch{Terminal: max30003.TerminalOverflow})
	m.ObserveBatch(max30003.Batch{Err: errors.New("boom")})

	for _, tc := range []struct {
		name string
		got  float64
		want float64
	}{
		{"valid", testutil.ToFloat64(m.samples.WithLabelValues("VALID")), 2},
		{"last-valid", testutil.ToFloat64(m.samples.WithLabelValues("LAST_VALID")), 1},
		{"empty", testutil.ToFloat64(m.empty), 1},
		{"overflows", testutil.ToFloat64(m.overflows), 1},
		{"errors", testutil.ToFloat64(m.errors), 1},
	} {
		if tc.got != tc.want {
			t.Errorf("%s: got=%v, want=%v", tc.name, tc.got, tc.want)
		}
	}
}

func TestObserveRtoR(t *testing.T) {
	m := New()
	m.ObserveRtoR(max30003.RtoR{})
	if got := testutil.ToFloat64(m.heartRate); got != 0 {
		t.Fatalf("heart rate set from an empty interval: %v", got)
	}
	m.ObserveRtoR(max30003.RtoR{Ticks: 96, Interval: 750 * time.Millisecond})
	if got, want := testutil.ToFloat64(m.heartRate), 80.0; got != want {
		t.Fatalf("invalid heart rate: got=%v, want=%v", got, want)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveBatch(max30003.Batch{Samples: []max30003.Sample{{Tag: max30003.TagValidFast}}})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("could not scrape: %+v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read body: %+v", err)
	}
	for _, want := range []string{
		`max30003_samples_total{tag="VALID_FAST_MODE"} 1`,
		"max30003_fifo_overflows_total 0",
		"max30003_rtor_interval_seconds_count 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}
