package native

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/pool"
	"github.com/wippyai/nativecoll/resource"
)

// StreamSize is the size of a native stream.
const StreamSize = 20

const (
	stPool  = 0
	stBaton = 4
	stRead  = 8
	stWrite = 12
	stClose = 16
)

// copyChunk is the scratch buffer size used by StreamCopy.
const copyChunk = 16 * 1024

type stream struct {
	pool  uint32
	baton resource.Handle
	read  FuncRef
	write FuncRef
	close FuncRef
}

func (r *Runtime) readStream(s nativecoll.Ptr) (stream, Status) {
	var f [5]uint32
	if st := readFields(r.mem, s, f[:]); st != StatusOK {
		return stream{}, st
	}
	return stream{
		pool:  f[0],
		baton: resource.Handle(f[1]),
		read:  FuncRef(f[2]),
		write: FuncRef(f[3]),
		close: FuncRef(f[4]),
	}, StatusOK
}

// StreamCreate allocates a stream in p that carries baton and has no
// callbacks installed.
func (r *Runtime) StreamCreate(p *pool.Pool, baton resource.Handle) (nativecoll.Ptr, Status) {
	s, err := p.Calloc(StreamSize, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	if st := writeFields(r.mem, s, uint32(p.ID()), uint32(baton)); st != StatusOK {
		return nativecoll.Null, st
	}
	return s, StatusOK
}

func (r *Runtime) setSlot(s nativecoll.Ptr, off nativecoll.Ptr, ref FuncRef) Status {
	if ref != 0 && r.funcs.get(ref) == nil {
		return StatusBadArgument
	}
	if s == nativecoll.Null {
		return StatusBadArgument
	}
	return store32(r.mem, s+off, uint32(ref))
}

func (r *Runtime) StreamSetRead(s nativecoll.Ptr, ref FuncRef) Status {
	return r.setSlot(s, stRead, ref)
}

func (r *Runtime) StreamSetWrite(s nativecoll.Ptr, ref FuncRef) Status {
	return r.setSlot(s, stWrite, ref)
}

func (r *Runtime) StreamSetClose(s nativecoll.Ptr, ref FuncRef) Status {
	return r.setSlot(s, stClose, ref)
}

// StreamBaton returns the baton recorded in s.
func (r *Runtime) StreamBaton(s nativecoll.Ptr) (resource.Handle, Status) {
	rec, st := r.readStream(s)
	return rec.baton, st
}

// StreamRead asks the read callback for up to n bytes at buf and returns
// the count it produced. 0 is end of stream.
func (r *Runtime) StreamRead(s, buf nativecoll.Ptr, n uint32) (uint32, Status) {
	rec, st := r.readStream(s)
	if st != StatusOK {
		return 0, st
	}
	if rec.read == 0 {
		return 0, StatusStreamNotSupported
	}
	fn, ok := r.funcs.get(rec.read).(ReadFunc)
	if !ok {
		return 0, StatusBadArgument
	}

	var got uint32
	st = r.invoke("read", s, func() Status {
		var st Status
		got, st = fn(rec.baton, buf, n)
		return st
	})
	if st != StatusOK {
		return 0, st
	}
	if got > n {
		return 0, StatusStreamMalformed
	}
	return got, StatusOK
}

// StreamWrite hands n bytes at data to the write callback. Every byte must
// be taken; a short write is reported as StatusStreamMalformed.
func (r *Runtime) StreamWrite(s, data nativecoll.Ptr, n uint32) (uint32, Status) {
	rec, st := r.readStream(s)
	if st != StatusOK {
		return 0, st
	}
	if rec.write == 0 {
		return 0, StatusStreamNotSupported
	}
	fn, ok := r.funcs.get(rec.write).(WriteFunc)
	if !ok {
		return 0, StatusBadArgument
	}

	var took uint32
	st = r.invoke("write", s, func() Status {
		var st Status
		took, st = fn(rec.baton, data, n)
		return st
	})
	if st != StatusOK {
		return 0, st
	}
	if took != n {
		return took, StatusStreamMalformed
	}
	return took, StatusOK
}

// StreamClose runs the close callback, if any, and uninstalls every
// callback so the stream cannot be used again.
func (r *Runtime) StreamClose(s nativecoll.Ptr) Status {
	rec, st := r.readStream(s)
	if st != StatusOK {
		return st
	}
	if st := writeFields(r.mem, s+stRead, 0, 0, 0); st != StatusOK {
		return st
	}
	if rec.close == 0 {
		return StatusOK
	}
	fn, ok := r.funcs.get(rec.close).(CloseFunc)
	if !ok {
		return StatusBadArgument
	}
	return r.invoke("close", s, func() Status {
		return fn(rec.baton)
	})
}

// invoke runs a callback, turning a panic into StatusCallbackAbort.
func (r *Runtime) invoke(op string, s nativecoll.Ptr, fn func() Status) (st Status) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Warn("stream callback panicked",
				zap.String("op", op),
				zap.Uint32("stream", uint32(s)),
				zap.Any("panic", v))
			st = StatusCallbackAbort
		}
	}()
	return fn()
}

type statusError Status

func (e statusError) Error() string { return fmt.Sprintf("native status %d: %s", int32(e), Status(e)) }

// StreamCopy copies from into to until from is exhausted, then closes both.
// Both are closed on failure too; the first failing status is returned.
func (r *Runtime) StreamCopy(from, to nativecoll.Ptr) Status {
	err := pool.With(r.alloc, nil, "stream-copy", func(p *pool.Pool) error {
		buf, err := p.Alloc(copyChunk, 0)
		if err != nil {
			return statusError(StatusOf(err))
		}
		for {
			n, st := r.StreamRead(from, buf, copyChunk)
			if st != StatusOK {
				return statusError(st)
			}
			if n == 0 {
				return nil
			}
			if _, st := r.StreamWrite(to, buf, n); st != StatusOK {
				return statusError(st)
			}
		}
	})

	result := StatusOK
	if err != nil {
		var se statusError
		if errors.As(err, &se) {
			result = Status(se)
		} else {
			result = StatusOf(err)
		}
	}
	if st := r.StreamClose(from); result == StatusOK {
		result = st
	}
	if st := r.StreamClose(to); result == StatusOK {
		result = st
	}
	return result
}
