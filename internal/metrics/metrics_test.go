package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func expectLines(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, line := range want {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("exposition missing %q", line)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	handler := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/missing", "/"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expectLines(t, scrape(t, m),
		"radiobox_http_requests_total 3",
		"radiobox_http_errors_total 1",
	)
}

func TestCommandCounters(t *testing.T) {
	m := New()
	m.IncCommand("VOLUME")
	m.IncCommand("VOLUME")
	m.IncCommand("NEXT_STATION")
	m.IncDroppedCommands()
	m.IncStationFailures()

	expectLines(t, scrape(t, m),
		`radiobox_commands_total{kind="VOLUME"} 2`,
		`radiobox_commands_total{kind="NEXT_STATION"} 1`,
		"radiobox_commands_dropped_total 1",
		"radiobox_station_failures_total 1",
	)
}

func TestHandlerRefreshesGauges(t *testing.T) {
	m := New()
	calls := 0
	h := m.Handler(func() {
		calls++
		m.Update(Snapshot{PlaybackState: 4, Volume: 0.25, Stations: 3, SampleOverflows: 7})
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if calls != 1 {
		t.Errorf("updateGauges called %d times, want 1", calls)
	}
	body, _ := io.ReadAll(rec.Body)
	expectLines(t, string(body),
		"radiobox_playback_state 4",
		"radiobox_volume 0.25",
		"radiobox_stations 3",
		"radiobox_sampler_overflows 7",
	)
}
