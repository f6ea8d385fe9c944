package dateutil

import "time"

// DateLike is anything that denotes an instant: a time.Time or a string
// accepted by Parse.
type DateLike interface {
	string | time.Time
}

func instant[T DateLike](v T) (time.Time, error) {
	switch x := any(v).(type) {
	case time.Time:
		return x, nil
	case string:
		return Parse(x)
	}
	panic("unreachable")
}

// Compare returns -1, 0 or +1 depending on whether a is before, equal to or
// after b.
func Compare[A, B DateLike](a A, b B) (int, error) {
	ta, err := instant(a)
	if err != nil {
		return 0, err
	}
	tb, err := instant(b)
	if err != nil {
		return 0, err
	}
	return ta.Compare(tb), nil
}

// BiggerThan reports whether a is strictly later than b.
func BiggerThan[A, B DateLike](a A, b B) (bool, error) {
	c, err := Compare(a, b)
	return c > 0, err
}

// LessThan reports whether a is strictly earlier than b.
func LessThan[A, B DateLike](a A, b B) (bool, error) {
	c, err := Compare(a, b)
	return c < 0, err
}
