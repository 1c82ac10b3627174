package native

import (
	"time"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/pool"
)

// Time is microseconds since the Unix epoch.
type Time int64

const (
	isoLayout   = "2006-01-02T15:04:05.000000Z"
	humanLayout = "2006-01-02 15:04:05 -0700 (Mon, 02 Jan 2006)"
)

// FromGoTime converts t to native ticks, truncating to microseconds.
func FromGoTime(t time.Time) Time {
	return Time(t.UnixMicro())
}

// GoTime converts native ticks to a UTC time.Time.
func (t Time) GoTime() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// TimeFromCString parses an ISO-8601 timestamp such as
// 2006-01-02T15:04:05.000000Z. Fractional seconds beyond microseconds are
// truncated.
func (r *Runtime) TimeFromCString(cstr nativecoll.Ptr) (Time, Status) {
	s, st := CStringRead(r.mem, cstr)
	if st != StatusOK {
		return 0, st
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, StatusBadDate
	}
	return FromGoTime(t), StatusOK
}

// TimeToCString formats t as an ISO-8601 UTC timestamp in p.
func (r *Runtime) TimeToCString(p *pool.Pool, t Time) (nativecoll.Ptr, Status) {
	return CStringCreate(p, t.GoTime().Format(isoLayout))
}

// TimeToHumanCString formats t for display in the runtime's location.
func (r *Runtime) TimeToHumanCString(p *pool.Pool, t Time) (nativecoll.Ptr, Status) {
	return CStringCreate(p, t.GoTime().In(r.loc).Format(humanLayout))
}
