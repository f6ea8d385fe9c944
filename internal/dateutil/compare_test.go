package dateutil_test

import (
	"errors"
	"testing"
	"time"

	"dateutil/internal/dateutil"
)

func TestParse(t *testing.T) {
	utc := time.UTC
	for _, tc := range []struct {
		in   string
		want time.Time
	}{
		{"1999-03-30 00:01:46", time.Date(1999, 3, 30, 0, 1, 46, 0, utc)},
		{"1999-03-30T00:01:46", time.Date(1999, 3, 30, 0, 1, 46, 0, utc)},
		{"1999-03-30 15:06", time.Date(1999, 3, 30, 15, 6, 0, 0, utc)},
		{"1999-03-30T15:06", time.Date(1999, 3, 30, 15, 6, 0, 0, utc)},
		{" 1999-03-30 ", time.Date(1999, 3, 30, 0, 0, 0, 0, utc)},
		{"1999-03-30 00:01:46.5", time.Date(1999, 3, 30, 0, 1, 46, 500000000, utc)},
		{"1999-03-30T00:01:46.123456789", time.Date(1999, 3, 30, 0, 1, 46, 123456789, utc)},
		{"1999-03-30T03:01:46Z", time.Date(1999, 3, 30, 3, 1, 46, 0, utc)},
		{"1999-03-30T00:01:46-03:00", time.Date(1999, 3, 30, 3, 1, 46, 0, utc)},
	} {
		got, err := dateutil.ParseInLocation(tc.in, utc)
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "30/03/1999", "1999-13-01", "1999-02-30", "yesterday", "1999-03-30 25:00"} {
		if _, err := dateutil.Parse(in); !errors.Is(err, dateutil.ErrInvalidDateFormat) {
			t.Errorf("%q: expected ErrInvalidDateFormat, got %v", in, err)
		}
	}
}

func TestComparisons(t *testing.T) {
	bigger, err := dateutil.BiggerThan("1999-03-30", "1999-03-29")
	if err != nil || !bigger {
		t.Errorf("got %v, %v, want true", bigger, err)
	}
	less, err := dateutil.LessThan("2000-03-30", "2022-02-15")
	if err != nil || !less {
		t.Errorf("got %v, %v, want true", less, err)
	}

	a := dateutil.MustParse("1999-03-30 15:06:00")
	mixed, err := dateutil.BiggerThan(a, "1999-03-30 15:05:59")
	if err != nil || !mixed {
		t.Errorf("got %v, %v, want true", mixed, err)
	}

	values := []time.Time{
		dateutil.MustParse("1999-03-29"),
		dateutil.MustParse("1999-03-30"),
		dateutil.MustParse("1999-03-30 00:00:01"),
		a,
	}
	for _, x := range values {
		for _, y := range values {
			b, err1 := dateutil.BiggerThan(x, y)
			l, err2 := dateutil.LessThan(y, x)
			if err1 != nil || err2 != nil {
				t.Fatalf("unexpected errors: %v, %v", err1, err2)
			}
			if b != l {
				t.Errorf("BiggerThan(%v, %v)=%v but LessThan(%v, %v)=%v", x, y, b, y, x, l)
			}
			if x.Equal(y) && (b || l) {
				t.Errorf("%v vs itself: bigger=%v less=%v", x, b, l)
			}
		}
	}

	if c, err := dateutil.Compare(a, a); err != nil || c != 0 {
		t.Errorf("got %v, %v, want 0", c, err)
	}
	if _, err := dateutil.BiggerThan("not a date", a); !errors.Is(err, dateutil.ErrInvalidDateFormat) {
		t.Errorf("expected ErrInvalidDateFormat, got %v", err)
	}
	if _, err := dateutil.LessThan(a, "1999/03/30"); !errors.Is(err, dateutil.ErrInvalidDateFormat) {
		t.Errorf("expected ErrInvalidDateFormat, got %v", err)
	}
}
