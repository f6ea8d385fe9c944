// Package web serves the date operations and the ICS agenda over a small
// JSON API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"dateutil/internal/config"
	"dateutil/internal/dateutil"
	"dateutil/internal/ics"
	"dateutil/internal/locale"
	appLog "dateutil/internal/log"
	"dateutil/internal/series"
)

const (
	agendaCacheTTL  = 30 * time.Second
	agendaCacheSize = 64
)

// errBadParam marks a malformed numeric query parameter.
var errBadParam = errors.New("bad query parameter")

// Server provides the HTTP API.
type Server struct {
	cfg     *config.Config
	mux     *http.ServeMux
	fetcher *ics.Fetcher
	metrics *metrics
	now     func() time.Time

	// Agenda responses keyed by days, backfill and locale, to avoid
	// refetching feeds on every request.
	agendaMu    sync.RWMutex
	agendaCache map[string]agendaCache
}

type agendaCache struct {
	resp      ics.AgendaResult
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:         cfg,
		mux:         http.NewServeMux(),
		fetcher:     ics.NewFetcher(cfg.CacheDir, nil),
		metrics:     newMetrics(),
		now:         time.Now,
		agendaCache: map[string]agendaCache{},
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := s.metrics.middleware(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dateutil", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is canceled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.handle("/health", http.HandlerFunc(s.handleHealth))
	s.handle("/metrics", s.metrics.handler())
	s.handle("/api/format", http.HandlerFunc(s.handleFormat))
	s.handle("/api/shift", http.HandlerFunc(s.handleShift))
	s.handle("/api/compare", http.HandlerFunc(s.handleCompare))
	s.handle("/api/series", http.HandlerFunc(s.handleSeries))
	s.handle("/api/agenda", http.HandlerFunc(s.handleAgenda))
}

func (s *Server) handle(path string, h http.Handler) {
	s.mux.Handle(path, h)
	s.metrics.route(path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type formatResponse struct {
	Input     time.Time `json:"input"`
	Locale    string    `json:"locale"`
	Formatted string    `json:"formatted"`
}

// handleFormat renders a date.
//
// GET /api/format?date=1999-03-30&locale=pt-br&weekday=long&month=long
//   - date: ISO-like date, defaults to now
//   - locale: BCP 47 tag, defaults to the configured locale
//   - weekday, day, month, year, hour, minute, second: option styles
//   - hour12: true/false, tz: IANA zone to render in
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := s.parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := optionsFromQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc := s.locale(q)
	merged := s.cfg.Format.Merge(opts)
	out, err := dateutil.FormatToString(t, &merged, loc)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, formatResponse{Input: t, Locale: loc, Formatted: out})
}

type shiftResponse struct {
	Input     time.Time `json:"input"`
	Result    time.Time `json:"result"`
	Policy    string    `json:"policy"`
	Clamped   bool      `json:"clamped"`
	Formatted string    `json:"formatted"`
}

// handleShift moves a date by years, months and days, applied in that
// order.
//
// GET /api/shift?date=1999-01-31&months=1&days=0&years=0&policy=clamp
func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := s.parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var days, months, years int
	for _, p := range []struct {
		name string
		dst  *int
	}{{"days", &days}, {"months", &months}, {"years", &years}} {
		if *p.dst, err = intParam(q, p.name, 0); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	policy := s.cfg.Policy()
	if v := q.Get("policy"); v != "" {
		if policy, err = dateutil.ParseMonthPolicy(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	total := years*12 + months
	res := dateutil.AddDays(dateutil.AddMonthsWithPolicy(t, total, policy), days)
	out, err := dateutil.FormatToString(res, &s.cfg.Format, s.locale(q))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, shiftResponse{
		Input:     t,
		Result:    res,
		Policy:    policy.String(),
		Clamped:   policy == dateutil.Clamp && dateutil.Clamped(t, total),
		Formatted: out,
	})
}

type compareResponse struct {
	A      time.Time `json:"a"`
	B      time.Time `json:"b"`
	Bigger bool      `json:"bigger"`
	Less   bool      `json:"less"`
	Equal  bool      `json:"equal"`
}

// handleCompare reports how a relates to b.
//
// GET /api/compare?a=1999-03-30&b=1999-03-22
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("a") == "" || q.Get("b") == "" {
		writeError(w, http.StatusBadRequest, "both a and b are required")
		return
	}
	a, err := s.parseDate(q.Get("a"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.parseDate(q.Get("b"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bigger, _ := dateutil.BiggerThan(a, b)
	less, _ := dateutil.LessThan(a, b)
	writeJSON(w, http.StatusOK, compareResponse{
		A:      a,
		B:      b,
		Bigger: bigger,
		Less:   less,
		Equal:  !bigger && !less,
	})
}

type seriesResponse struct {
	Dates     []time.Time `json:"dates"`
	Formatted []string    `json:"formatted"`
}

// handleSeries lists the dates of a recurrence.
//
// GET /api/series?start=1999-01-31&freq=monthly&interval=1&count=12
// GET /api/series?start=1999-01-31&rule=FREQ=MONTHLY;BYMONTHDAY=-1;COUNT=3
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := s.parseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var dates []time.Time
	if rule := q.Get("rule"); rule != "" {
		limit, err := intParam(q, "count", series.MaxCount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dates, err = series.Expand(rule, start, limit)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	} else {
		spec, err := s.seriesSpec(q)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if dates, err = series.Generate(start, spec); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	resp := seriesResponse{Dates: dates, Formatted: make([]string, 0, len(dates))}
	loc := s.locale(q)
	for _, d := range dates {
		out, err := dateutil.FormatToString(d, &s.cfg.Format, loc)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Formatted = append(resp.Formatted, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) seriesSpec(q url.Values) (series.Spec, error) {
	var spec series.Spec
	freq, err := series.ParseFreq(q.Get("freq"))
	if err != nil {
		return spec, err
	}
	spec.Freq = freq
	if spec.Interval, err = intParam(q, "interval", 1); err != nil {
		return spec, err
	}
	if spec.Count, err = intParam(q, "count", 0); err != nil {
		return spec, err
	}
	if v := q.Get("until"); v != "" {
		if spec.Until, err = s.parseDate(v); err != nil {
			return spec, err
		}
	}
	return spec, nil
}

// handleAgenda returns the configured ICS sources as formatted agenda
// entries.
//
// GET /api/agenda?days=7&backfill=1&locale=pt-br
//   - days: days ahead, defaults to horizon_days
//   - backfill: past days to include (default 0)
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	lang := strings.ToLower(s.locale(q))
	key := fmt.Sprintf("%d/%d/%s", days, backfill, lang)
	s.agendaMu.RLock()
	ac, ok := s.agendaCache[key]
	s.agendaMu.RUnlock()
	if ok && s.now().Sub(ac.updatedAt) < agendaCacheTTL {
		writeJSON(w, http.StatusOK, ac.resp)
		return
	}

	loc, err := s.cfg.Location()
	if err != nil {
		appLog.Error("api agenda: bad timezone; falling back to local", err)
		loc = time.Local
	}
	appLog.Info("api agenda request", "days", days, "backfill", backfill, "timezone", loc.String())

	resp, err := ics.BuildAgenda(r.Context(), s.fetcher, ics.SourcesFromConfig(s.cfg.ICS), ics.AgendaRequest{
		Now:      s.now(),
		Location: loc,
		Backfill: backfill,
		Days:     days,
		Options:  &s.cfg.Format,
		Locale:   lang,
	})
	if err != nil {
		appLog.Error("api agenda: build failed", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	s.storeAgenda(key, resp)
	s.metrics.agendaEntries.Set(float64(len(resp.Entries)))

	writeJSON(w, http.StatusOK, resp)
}

// storeAgenda caches resp under key, dropping expired entries first. The
// map never holds more than agendaCacheSize entries.
func (s *Server) storeAgenda(key string, resp ics.AgendaResult) {
	now := s.now()
	s.agendaMu.Lock()
	defer s.agendaMu.Unlock()
	for k, ac := range s.agendaCache {
		if now.Sub(ac.updatedAt) >= agendaCacheTTL {
			delete(s.agendaCache, k)
		}
	}
	if len(s.agendaCache) >= agendaCacheSize {
		clear(s.agendaCache)
	}
	s.agendaCache[key] = agendaCache{resp: resp, updatedAt: now}
}

// parseDate parses v in the configured zone; empty means now.
func (s *Server) parseDate(v string) (time.Time, error) {
	loc, err := s.cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	if v == "" {
		return s.now().In(loc), nil
	}
	return dateutil.ParseInLocation(v, loc)
}

func (s *Server) locale(q url.Values) string {
	if v := q.Get("locale"); v != "" {
		return v
	}
	return s.cfg.Locale
}

// optionsFromQuery reads the option styles present in q. Values are
// validated by the formatter.
func optionsFromQuery(q url.Values) (locale.Options, error) {
	opts := locale.Options{
		Weekday:  locale.Style(q.Get("weekday")),
		Day:      locale.Style(q.Get("day")),
		Month:    locale.Style(q.Get("month")),
		Year:     locale.Style(q.Get("year")),
		Hour:     locale.Style(q.Get("hour")),
		Minute:   locale.Style(q.Get("minute")),
		Second:   locale.Style(q.Get("second")),
		TimeZone: q.Get("tz"),
	}
	if v := q.Get("hour12"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, &locale.OptionError{Field: "hour12", Value: v}
		}
		opts.Hour12 = &b
	}
	return opts, nil
}

// statusFor maps input errors to 400 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dateutil.ErrInvalidDateFormat),
		errors.Is(err, locale.ErrFormatOption),
		errors.Is(err, locale.ErrInvalidLocale),
		errors.Is(err, series.ErrInvalidSpec),
		errors.Is(err, errBadParam):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: not an integer: %q", errBadParam, name, v)
	}
	return n, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
