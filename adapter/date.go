package adapter

import (
	"time"

	"github.com/wippyai/nativecoll/errors"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/pool"
)

// Date is an ISO-8601 timestamp such as 2024-05-01T12:00:00.000000Z,
// converted through the native date primitives.
type Date string

// Time parses the date into native microsecond ticks.
func (d Date) Time(rt *native.Runtime) (native.Time, error) {
	var t native.Time
	err := pool.With(rt.Allocator(), nil, "date", func(p *pool.Pool) error {
		cstr, st := native.CStringCreate(p, string(d))
		if st != native.StatusOK {
			if st == native.StatusBadArgument {
				return errors.InvalidInput(errors.PhaseDate, "date contains a NUL byte")
			}
			return statusErr(errors.PhaseDate, "cstring_create", st)
		}
		t, st = rt.TimeFromCString(cstr)
		if st != native.StatusOK {
			return errors.New(errors.PhaseDate, errors.KindInvalidInput).
				Op("time_from_cstring").
				Status(int(st)).
				Value(string(d)).
				Detail("%s", st).
				Build()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return t, nil
}

// HumanString formats the date for display in the runtime's location, for
// example "2024-05-01 14:00:00 +0200 (Wed, 01 May 2024)".
func (d Date) HumanString(rt *native.Runtime) (string, error) {
	t, err := d.Time(rt)
	if err != nil {
		return "", err
	}
	var s string
	err = pool.With(rt.Allocator(), nil, "date", func(p *pool.Pool) error {
		cstr, st := rt.TimeToHumanCString(p, t)
		if st != native.StatusOK {
			return statusErr(errors.PhaseDate, "time_to_human_cstring", st)
		}
		s, st = native.CStringRead(rt.Memory(), cstr)
		if st != native.StatusOK {
			return statusErr(errors.PhaseDate, "cstring_read", st)
		}
		return nil
	})
	return s, err
}

// DateOf formats t as a Date, truncated to microseconds.
func DateOf(rt *native.Runtime, t time.Time) (Date, error) {
	var d Date
	err := pool.With(rt.Allocator(), nil, "date", func(p *pool.Pool) error {
		cstr, st := rt.TimeToCString(p, native.FromGoTime(t))
		if st != native.StatusOK {
			return statusErr(errors.PhaseDate, "time_to_cstring", st)
		}
		s, st := native.CStringRead(rt.Memory(), cstr)
		if st != native.StatusOK {
			return statusErr(errors.PhaseDate, "cstring_read", st)
		}
		d = Date(s)
		return nil
	})
	return d, err
}
