package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit is the base unit of a resolution.
type Unit string

const (
	UnitSecond Unit = "second"
	UnitMinute Unit = "minute"
	UnitDay    Unit = "day"
	UnitWeek   Unit = "week"
	UnitMonth  Unit = "month"
)

// Resolution is a parsed bar width request, e.g. 15 minutes or 1 week.
type Resolution struct {
	Unit       Unit
	Multiplier int
}

// String renders the resolution back in datafeed token form.
func (r Resolution) String() string {
	switch r.Unit {
	case UnitSecond:
		return fmt.Sprintf("%dS", r.Multiplier)
	case UnitDay:
		return fmt.Sprintf("%dD", r.Multiplier)
	case UnitWeek:
		return fmt.Sprintf("%dW", r.Multiplier)
	case UnitMonth:
		return fmt.Sprintf("%dM", r.Multiplier)
	default:
		return strconv.Itoa(r.Multiplier)
	}
}

// IsIntraday reports whether buckets have a fixed millisecond width.
func (r Resolution) IsIntraday() bool {
	return r.Unit == UnitSecond || r.Unit == UnitMinute
}

// WidthMillis returns the bucket width for second and minute units.
func (r Resolution) WidthMillis() int64 {
	switch r.Unit {
	case UnitSecond:
		return int64(r.Multiplier) * 1000
	case UnitMinute:
		return int64(r.Multiplier) * 60_000
	default:
		return 0
	}
}

var suffixUnits = map[byte]Unit{
	'S': UnitSecond,
	'D': UnitDay,
	'W': UnitWeek,
	'M': UnitMonth,
}

// ParseResolution parses a datafeed resolution token ("15", "1S", "D", "1W", "1M").
// Tokens without a letter suffix are minutes. An empty numeric prefix means 1.
func ParseResolution(token string) (Resolution, error) {
	r := strings.ToUpper(strings.TrimSpace(token))
	if r == "" {
		return Resolution{}, fmt.Errorf("%w: empty token", ErrInvalidResolution)
	}

	unit := UnitMinute
	prefix := r
	if u, ok := suffixUnits[r[len(r)-1]]; ok {
		unit = u
		prefix = r[:len(r)-1]
	}

	n := 1
	if prefix != "" {
		v, err := strconv.Atoi(prefix)
		if err != nil || v < 0 || strings.HasPrefix(prefix, "+") {
			return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, token)
		}
		n = v
	}
	if n == 0 {
		return Resolution{}, fmt.Errorf("%w: zero multiplier in %q", ErrInvalidResolution, token)
	}
	return Resolution{Unit: unit, Multiplier: n}, nil
}

// SupportsResolution reports whether res is among the declared tokens.
// Tokens are compared in parsed form so "D" and "1D" match; unparseable
// declared tokens are ignored.
func SupportsResolution(declared []string, res Resolution) bool {
	for _, tok := range declared {
		d, err := ParseResolution(tok)
		if err != nil {
			continue
		}
		if d == res {
			return true
		}
	}
	return false
}
