package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dateutil/internal/config"
	"dateutil/internal/dateutil"
	"dateutil/internal/ics"
	"dateutil/internal/locale"
	appLog "dateutil/internal/log"
	"dateutil/internal/schedule"
	"dateutil/internal/series"
	"dateutil/internal/web"
)

const usage = `usage: dateutil [-config path] [-log-level level] <command> [flags] [args]

commands:
  format  DATE...        render dates in a locale
  shift   DATE           move a date by days, months and years
  compare A B            print bigger, less or equal
  series  START          list the dates of a recurrence
  next    [FROM]         list the next activations of a cron spec
  agenda                 render the configured ICS sources
  watch                  print the current time on a cron spec until interrupted
  serve                  run the HTTP API
`

var errUsage = errors.New("invalid usage")

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		appLog.Error("dateutil failed", err)
		os.Exit(1)
	}
}

// env is what every command needs.
type env struct {
	cfg *config.Config
	loc *time.Location
	out io.Writer
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("dateutil", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "", "Path to config file (defaults are used when empty)")
	logLevel := global.String("log-level", "", "DEBUG, INFO, WARN or ERROR (overrides config)")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return fmt.Errorf("load config %v: %w", *configPath, err)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	appLog.SetLevel(level)
	if cfg.LogFile != "" {
		if err := appLog.SetFile(cfg.LogFile); err != nil {
			return fmt.Errorf("log file %v: %w", cfg.LogFile, err)
		}
		defer appLog.SetFile("")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	e := &env{cfg: cfg, loc: loc, out: stdout}

	appLog.Debug("effective config",
		"locale", cfg.Locale,
		"timezone", loc.String(),
		"month_policy", cfg.MonthPolicy,
		"ics_count", len(cfg.ICS),
	)

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "format":
		return e.format(cmdArgs)
	case "shift":
		return e.shift(cmdArgs)
	case "compare":
		return e.compare(cmdArgs)
	case "series":
		return e.series(cmdArgs)
	case "next":
		return e.next(cmdArgs)
	case "agenda":
		return e.agenda(ctx, cmdArgs)
	case "watch":
		return e.watch(ctx, cmdArgs)
	case "serve":
		return e.serve(ctx, cmdArgs)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// optionFlags registers the format option flags on fs. The returned func
// yields the options after parsing.
func optionFlags(fs *flag.FlagSet) func() (locale.Options, error) {
	var weekday, day, month, year, hour, minute, second, hour12, tz string
	fs.StringVar(&weekday, "weekday", "", "long, short or narrow")
	fs.StringVar(&day, "day", "", "numeric or 2-digit")
	fs.StringVar(&month, "month", "", "numeric, 2-digit, long, short or narrow")
	fs.StringVar(&year, "year", "", "numeric or 2-digit")
	fs.StringVar(&hour, "hour", "", "numeric or 2-digit")
	fs.StringVar(&minute, "minute", "", "numeric or 2-digit")
	fs.StringVar(&second, "second", "", "numeric or 2-digit")
	fs.StringVar(&hour12, "hour12", "", "true or false (locale default when empty)")
	fs.StringVar(&tz, "tz", "", "IANA time zone to render in")
	return func() (locale.Options, error) {
		opts := locale.Options{
			Weekday:  locale.Style(weekday),
			Day:      locale.Style(day),
			Month:    locale.Style(month),
			Year:     locale.Style(year),
			Hour:     locale.Style(hour),
			Minute:   locale.Style(minute),
			Second:   locale.Style(second),
			TimeZone: tz,
		}
		if hour12 != "" {
			switch strings.ToLower(hour12) {
			case "true":
				b := true
				opts.Hour12 = &b
			case "false":
				b := false
				opts.Hour12 = &b
			default:
				return opts, &locale.OptionError{Field: "hour12", Value: hour12}
			}
		}
		return opts, nil
	}
}

func (e *env) parseDate(s string) (time.Time, error) {
	if s == "now" {
		return time.Now().In(e.loc), nil
	}
	return dateutil.ParseInLocation(s, e.loc)
}

func (e *env) localeOr(v string) string {
	if v != "" {
		return v
	}
	return e.cfg.Locale
}

func (e *env) format(args []string) error {
	fs := newFlagSet("format")
	loc := fs.String("locale", "", "BCP 47 locale (config locale when empty)")
	options := optionFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: format needs at least one date", errUsage)
	}
	opts, err := options()
	if err != nil {
		return err
	}
	merged := e.cfg.Format.Merge(opts)
	for _, arg := range fs.Args() {
		t, err := e.parseDate(arg)
		if err != nil {
			return err
		}
		out, err := dateutil.FormatToString(t, &merged, e.localeOr(*loc))
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, out)
	}
	return nil
}

func (e *env) shift(args []string) error {
	fs := newFlagSet("shift")
	days := fs.Int("days", 0, "Calendar days to add (negative subtracts)")
	months := fs.Int("months", 0, "Months to add (negative subtracts)")
	years := fs.Int("years", 0, "Years to add (negative subtracts)")
	policyName := fs.String("policy", "", "clamp or overflow (config month_policy when empty)")
	loc := fs.String("locale", "", "BCP 47 locale (config locale when empty)")
	iso := fs.Bool("iso", false, "Print RFC 3339 instead of the localized date")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: shift needs exactly one date", errUsage)
	}
	t, err := e.parseDate(fs.Arg(0))
	if err != nil {
		return err
	}
	policy := e.cfg.Policy()
	if *policyName != "" {
		if policy, err = dateutil.ParseMonthPolicy(*policyName); err != nil {
			return err
		}
	}

	total := *years*12 + *months
	res := dateutil.AddDays(dateutil.AddMonthsWithPolicy(t, total, policy), *days)
	if policy == dateutil.Clamp && dateutil.Clamped(t, total) {
		appLog.Info("day of month clamped", "from", t.Day(), "to", dateutil.AddMonths(t, total).Day())
	}
	if *iso {
		fmt.Fprintln(e.out, res.Format(time.RFC3339))
		return nil
	}
	out, err := dateutil.FormatToString(res, &e.cfg.Format, e.localeOr(*loc))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, out)
	return nil
}

func (e *env) compare(args []string) error {
	fs := newFlagSet("compare")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: compare needs two dates", errUsage)
	}
	a, err := e.parseDate(fs.Arg(0))
	if err != nil {
		return err
	}
	b, err := e.parseDate(fs.Arg(1))
	if err != nil {
		return err
	}
	c, _ := dateutil.Compare(a, b)
	switch {
	case c > 0:
		fmt.Fprintln(e.out, "bigger")
	case c < 0:
		fmt.Fprintln(e.out, "less")
	default:
		fmt.Fprintln(e.out, "equal")
	}
	return nil
}

func (e *env) series(args []string) error {
	fs := newFlagSet("series")
	freq := fs.String("freq", "monthly", "daily, weekly, monthly or yearly")
	interval := fs.Int("interval", 1, "Step between dates in units of freq")
	count := fs.Int("count", 0, "Number of dates")
	until := fs.String("until", "", "Inclusive last date")
	rule := fs.String("rule", "", "Raw RRULE, overrides freq/interval/until")
	loc := fs.String("locale", "", "BCP 47 locale (config locale when empty)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: series needs a start date", errUsage)
	}
	start, err := e.parseDate(fs.Arg(0))
	if err != nil {
		return err
	}

	var dates []time.Time
	if *rule != "" {
		dates, err = series.Expand(*rule, start, *count)
	} else {
		spec := series.Spec{Interval: *interval, Count: *count}
		if spec.Freq, err = series.ParseFreq(*freq); err != nil {
			return err
		}
		if *until != "" {
			if spec.Until, err = e.parseDate(*until); err != nil {
				return err
			}
		}
		dates, err = series.Generate(start, spec)
	}
	if err != nil {
		return err
	}
	for _, d := range dates {
		out, err := dateutil.FormatToString(d, &e.cfg.Format, e.localeOr(*loc))
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, out)
	}
	return nil
}

func (e *env) next(args []string) error {
	fs := newFlagSet("next")
	spec := fs.String("spec", "", "Cron spec (config watch when empty)")
	n := fs.Int("n", 5, "Number of activations")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *spec == "" {
		*spec = e.cfg.Watch
	}
	from := time.Now().In(e.loc)
	if fs.NArg() > 0 {
		var err error
		if from, err = e.parseDate(fs.Arg(0)); err != nil {
			return err
		}
	}
	times, err := schedule.Next(*spec, from, *n)
	if err != nil {
		return err
	}
	for _, t := range times {
		fmt.Fprintln(e.out, t.Format(time.RFC3339))
	}
	return nil
}

func (e *env) agenda(ctx context.Context, args []string) error {
	fs := newFlagSet("agenda")
	days := fs.Int("days", e.cfg.HorizonDays, "Days ahead")
	backfill := fs.Int("backfill", 0, "Past days to include")
	loc := fs.String("locale", "", "BCP 47 locale (config locale when empty)")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	sources := ics.SourcesFromConfig(e.cfg.ICS)
	if len(sources) == 0 {
		appLog.Warn("agenda: no ICS sources configured")
	}
	res, err := ics.BuildAgenda(ctx, ics.NewFetcher(e.cfg.CacheDir, nil), sources, ics.AgendaRequest{
		Location: e.loc,
		Backfill: *backfill,
		Days:     *days,
		Options:  &e.cfg.Format,
		Locale:   e.localeOr(*loc),
	})
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(e.out, res)
	}
	for _, entry := range res.Entries {
		when := entry.Date
		if entry.Time != "" {
			when += " " + entry.Time
		}
		line := when + "  " + entry.Summary
		if entry.Location != "" {
			line += " (" + entry.Location + ")"
		}
		fmt.Fprintln(e.out, line)
	}
	return nil
}

func (e *env) watch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch")
	spec := fs.String("spec", "", "Cron spec (config watch when empty)")
	loc := fs.String("locale", "", "BCP 47 locale (config locale when empty)")
	options := optionFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *spec == "" {
		*spec = e.cfg.Watch
	}
	opts, err := options()
	if err != nil {
		return err
	}
	// Time fields are shown unless the caller picked some.
	if opts.Hour == "" && opts.Minute == "" && opts.Second == "" {
		opts.Hour, opts.Minute = locale.TwoDigit, locale.TwoDigit
	}
	merged := e.cfg.Format.Merge(opts)
	lang := e.localeOr(*loc)
	if _, err := dateutil.FormatToString(time.Now(), &merged, lang); err != nil {
		return err
	}

	err = schedule.NewTicker(e.loc).Run(ctx, *spec, func(now time.Time) {
		out, err := dateutil.FormatToString(now, &merged, lang)
		if err != nil {
			appLog.Error("watch: format failed", err)
			return
		}
		fmt.Fprintln(e.out, out)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *env) serve(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	listen := fs.String("listen", "", "HTTP listen address (overrides config if set)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *listen != "" {
		e.cfg.Listen = *listen
	}
	return web.StartServer(ctx, e.cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
