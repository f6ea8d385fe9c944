package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"dateutil/internal/config"
	"dateutil/internal/ics"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	s := NewServer(cfg)
	s.now = func() time.Time { return time.Date(1999, 3, 30, 15, 6, 0, 0, time.UTC) }
	return s, cfg
}

func get(t *testing.T, h http.Handler, path string, q url.Values, out any) int {
	t.Helper()
	target := path
	if q != nil {
		target += "?" + q.Encode()
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%v: %v: %s", target, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("got %v %q", rec.Code, rec.Body.String())
	}
}

func TestFormat(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	for _, tc := range []struct {
		query url.Values
		want  string
	}{
		{url.Values{"date": {"1999-03-30"}}, "30/03/1999"},
		{url.Values{"date": {"1999-03-30"}, "month": {"long"}}, "30 de março de 1999"},
		{url.Values{"date": {"1999-03-30"}, "month": {"long"}, "weekday": {"long"}}, "terça-feira, 30 de março de 1999"},
		{url.Values{"date": {"1999-03-30"}, "locale": {"en-US"}}, "03/30/1999"},
		{url.Values{}, "30/03/1999"},
	} {
		var resp formatResponse
		if code := get(t, h, "/api/format", tc.query, &resp); code != http.StatusOK {
			t.Errorf("%v: got status %v", tc.query, code)
			continue
		}
		if resp.Formatted != tc.want {
			t.Errorf("%v: got %v, want %v", tc.query, resp.Formatted, tc.want)
		}
	}

	for _, q := range []url.Values{
		{"date": {"30/03/1999"}},
		{"date": {"1999-03-30"}, "weekday": {"numeric"}},
		{"date": {"1999-03-30"}, "month": {"bogus"}},
		{"date": {"1999-03-30"}, "tz": {"Mars/Olympus"}},
		{"date": {"1999-03-30"}, "hour12": {"maybe"}},
		{"date": {"1999-03-30"}, "locale": {"not a locale!"}},
	} {
		if code := get(t, h, "/api/format", q, nil); code != http.StatusBadRequest {
			t.Errorf("%v: got status %v, want 400", q, code)
		}
	}
}

func TestShift(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	for _, tc := range []struct {
		query   url.Values
		want    time.Time
		clamped bool
		text    string
	}{
		{url.Values{"date": {"1999-03-22"}, "days": {"22"}}, time.Date(1999, 4, 13, 0, 0, 0, 0, time.UTC), false, "13/04/1999"},
		{url.Values{"date": {"1999-03-22"}, "days": {"-90"}}, time.Date(1998, 12, 22, 0, 0, 0, 0, time.UTC), false, "22/12/1998"},
		{url.Values{"date": {"1999-01-31"}, "months": {"1"}}, time.Date(1999, 2, 28, 0, 0, 0, 0, time.UTC), true, "28/02/1999"},
		{url.Values{"date": {"1999-01-31"}, "months": {"1"}, "policy": {"overflow"}}, time.Date(1999, 3, 3, 0, 0, 0, 0, time.UTC), false, "03/03/1999"},
		{url.Values{"date": {"2000-02-29"}, "years": {"1"}}, time.Date(2001, 2, 28, 0, 0, 0, 0, time.UTC), true, "28/02/2001"},
	} {
		var resp shiftResponse
		if code := get(t, h, "/api/shift", tc.query, &resp); code != http.StatusOK {
			t.Errorf("%v: got status %v", tc.query, code)
			continue
		}
		if !resp.Result.Equal(tc.want) {
			t.Errorf("%v: got %v, want %v", tc.query, resp.Result, tc.want)
		}
		if resp.Clamped != tc.clamped {
			t.Errorf("%v: got clamped %v, want %v", tc.query, resp.Clamped, tc.clamped)
		}
		if resp.Formatted != tc.text {
			t.Errorf("%v: got %v, want %v", tc.query, resp.Formatted, tc.text)
		}
	}

	for _, q := range []url.Values{
		{"date": {"1999-03-22"}, "days": {"x"}},
		{"date": {"1999-03-22"}, "months": {"1"}, "policy": {"wrap"}},
		{"date": {"yesterday"}},
	} {
		if code := get(t, h, "/api/shift", q, nil); code != http.StatusBadRequest {
			t.Errorf("%v: got status %v, want 400", q, code)
		}
	}
}

func TestCompare(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	for _, tc := range []struct {
		a, b                string
		bigger, less, equal bool
	}{
		{"1999-03-30", "1999-03-22", true, false, false},
		{"1999-03-22", "1999-03-30", false, true, false},
		{"1999-03-22T00:00:00Z", "1999-03-22", false, false, true},
	} {
		var resp compareResponse
		if code := get(t, h, "/api/compare", url.Values{"a": {tc.a}, "b": {tc.b}}, &resp); code != http.StatusOK {
			t.Errorf("%v %v: got status %v", tc.a, tc.b, code)
			continue
		}
		if resp.Bigger != tc.bigger || resp.Less != tc.less || resp.Equal != tc.equal {
			t.Errorf("%v %v: got %+v", tc.a, tc.b, resp)
		}
	}
	if code := get(t, h, "/api/compare", url.Values{"a": {"1999-03-22"}}, nil); code != http.StatusBadRequest {
		t.Errorf("got status %v, want 400", code)
	}
	if code := get(t, h, "/api/compare", url.Values{"a": {"1999-03-22"}, "b": {"22/03/1999"}}, nil); code != http.StatusBadRequest {
		t.Errorf("got status %v, want 400", code)
	}
}

func TestSeries(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	var resp seriesResponse
	q := url.Values{"start": {"1999-01-31"}, "freq": {"monthly"}, "count": {"3"}}
	if code := get(t, h, "/api/series", q, &resp); code != http.StatusOK {
		t.Fatalf("got status %v", code)
	}
	if got, want := strings.Join(resp.Formatted, " "), "31/01/1999 31/03/1999 31/05/1999"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	q = url.Values{"start": {"1999-01-31"}, "rule": {"FREQ=MONTHLY;BYMONTHDAY=-1;COUNT=3"}}
	if code := get(t, h, "/api/series", q, &resp); code != http.StatusOK {
		t.Fatalf("got status %v", code)
	}
	if got, want := strings.Join(resp.Formatted, " "), "31/01/1999 28/02/1999 31/03/1999"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	for _, q := range []url.Values{
		{"start": {"1999-01-31"}, "freq": {"hourly"}, "count": {"3"}},
		{"start": {"1999-01-31"}, "freq": {"daily"}},
		{"start": {"1999-01-31"}, "rule": {"FREQ=NEVER"}},
		{"start": {"1999-01-31"}, "freq": {"monthly"}, "count": {"abc"}},
		{"start": {"1999-01-31"}, "freq": {"monthly"}, "interval": {"x"}, "count": {"3"}},
		{"start": {"1999-01-31"}, "rule": {"FREQ=DAILY"}, "count": {"many"}},
	} {
		if code := get(t, h, "/api/series", q, nil); code != http.StatusBadRequest {
			t.Errorf("%v: got status %v, want 400", q, code)
		}
	}
}

const agendaICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//dateutil//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:dentist\r\n" +
	"SUMMARY:Dentist\r\n" +
	"DTSTART:19990331T130000Z\r\n" +
	"DTEND:19990331T140000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestAgenda(t *testing.T) {
	s, cfg := newTestServer(t)
	path := filepath.Join(t.TempDir(), "cal.ics")
	if err := os.WriteFile(path, []byte(agendaICS), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.ICS = []config.ICSConfig{{URL: path, ID: "personal"}}
	h := s.Handler()

	var resp ics.AgendaResult
	if code := get(t, h, "/api/agenda", url.Values{"days": {"7"}}, &resp); code != http.StatusOK {
		t.Fatalf("got status %v", code)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("got %v", resp.Entries)
	}
	e := resp.Entries[0]
	if e.Date != "31/03/1999" || e.Time != "13:00" || e.SourceID != "personal" {
		t.Errorf("got %+v", e)
	}

	// Cached until the TTL passes.
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if code := get(t, h, "/api/agenda", url.Values{"days": {"7"}}, &resp); code != http.StatusOK || len(resp.Entries) != 1 {
		t.Errorf("got status %v, %v entries; want cached entry", code, len(resp.Entries))
	}

	s.now = func() time.Time { return time.Date(1999, 3, 30, 15, 7, 0, 0, time.UTC) }
	resp = ics.AgendaResult{}
	if code := get(t, h, "/api/agenda", url.Values{"days": {"7"}}, &resp); code != http.StatusOK || len(resp.Entries) != 0 {
		t.Errorf("got status %v, %v entries; want a fresh empty agenda", code, len(resp.Entries))
	}
}

func TestAgendaCacheKey(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	for _, q := range []url.Values{
		{"junk": {"1"}},
		{"junk": {"2"}},
		{"days": {"7"}, "junk": {"3"}},
		{"locale": {"PT-BR"}},
	} {
		if code := get(t, h, "/api/agenda", q, nil); code != http.StatusOK {
			t.Fatalf("%v: got status %v", q, code)
		}
	}
	if got := len(s.agendaCache); got != 1 {
		t.Errorf("got %v cache entries, want 1", got)
	}

	get(t, h, "/api/agenda", url.Values{"days": {"3"}}, nil)
	if got := len(s.agendaCache); got != 2 {
		t.Errorf("got %v cache entries, want 2", got)
	}

	s.now = func() time.Time { return time.Date(1999, 3, 30, 16, 0, 0, 0, time.UTC) }
	get(t, h, "/api/agenda", url.Values{"days": {"1"}}, nil)
	if got := len(s.agendaCache); got != 1 {
		t.Errorf("got %v cache entries after expiry, want 1", got)
	}

	for i := 1; i <= agendaCacheSize+10; i++ {
		get(t, h, "/api/agenda", url.Values{"days": {strconv.Itoa(i)}}, nil)
	}
	if got := len(s.agendaCache); got > agendaCacheSize {
		t.Errorf("got %v cache entries, want at most %v", got, agendaCacheSize)
	}
}

func TestBasicAuth(t *testing.T) {
	s, cfg := newTestServer(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/format", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %v, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("got %v, want 200 for /health", rec.Code)
	}

	for _, tc := range []struct {
		user, pass string
		want       int
	}{
		{"admin", "s3cret", http.StatusOK},
		{"admin", "wrong", http.StatusUnauthorized},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/format", nil)
		req.SetBasicAuth(tc.user, tc.pass)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%v/%v: got %v, want %v", tc.user, tc.pass, rec.Code, tc.want)
		}
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	get(t, h, "/api/format", url.Values{"date": {"1999-03-30"}}, nil)
	get(t, h, "/api/format", url.Values{"date": {"bad"}}, nil)
	get(t, h, "/no/such/route", nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %v", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`dateutil_http_requests_total{code="200",path="/api/format"} 1`,
		`dateutil_http_requests_total{code="400",path="/api/format"} 1`,
		`dateutil_http_requests_total{code="404",path="other"} 1`,
		"dateutil_http_request_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output does not contain %q", want)
		}
	}
}
