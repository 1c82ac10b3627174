package native

import (
	"errors"
	"fmt"

	"github.com/wippyai/nativecoll/pool"
)

// Status is the result code of a native primitive.
type Status int32

const (
	StatusOK          Status = 0
	StatusNoMemory    Status = 12
	StatusFault       Status = 14
	StatusBadArgument Status = 22

	statusBase Status = 120000

	StatusPoolDestroyed      = statusBase
	StatusBadDate            = statusBase + 1
	StatusStreamNotSupported = statusBase + 2
	StatusStreamMalformed    = statusBase + 3
	StatusCallbackAbort      = statusBase + 4
)

var statusText = map[Status]string{
	StatusOK:                 "success",
	StatusNoMemory:           "out of native memory",
	StatusFault:              "bad native address",
	StatusBadArgument:        "invalid argument",
	StatusPoolDestroyed:      "pool destroyed",
	StatusBadDate:            "malformed date string",
	StatusStreamNotSupported: "stream operation not supported",
	StatusStreamMalformed:    "malformed stream data",
	StatusCallbackAbort:      "stream callback aborted",
}

func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return fmt.Sprintf("status %d", int32(s))
}

// OK reports whether s is StatusOK.
func (s Status) OK() bool { return s == StatusOK }

// StatusOf maps an allocator error to the status reported for it.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, pool.ErrOutOfMemory):
		return StatusNoMemory
	case errors.Is(err, pool.ErrDestroyed):
		return StatusPoolDestroyed
	case errors.Is(err, pool.ErrBadAlign):
		return StatusBadArgument
	default:
		return StatusFault
	}
}
