package adapter

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/errors"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/pool"
	"github.com/wippyai/nativecoll/resource"
)

// callback names registered on every runtime that creates a stream
const callbackName = "adapter.stream"

// Stream is a native byte stream backed by a Go reader or writer. It is
// itself an io.ReadWriteCloser that goes through the native stream.
type Stream struct {
	region
	s     nativecoll.Ptr
	state *streamState

	// inner is the stream a compressed stream wraps.
	inner *Stream

	// poisoned holds the first callback failure. Every later call returns it.
	poisoned error
}

// streamState is the baton: the Go side of a native stream.
type streamState struct {
	handle any
	err    error
	log    *zap.Logger

	// owns is set unless the stream was disowned. closed records that the
	// handle was closed, by the close callback or by Drop.
	owns   bool
	closed bool
}

var _ resource.Dropper = (*streamState)(nil)

// closeHandle closes the handle once, if the stream owns it.
func (s *streamState) closeHandle() error {
	if !s.owns || s.closed {
		return nil
	}
	s.closed = true
	if c := closerOf(s.handle); c != nil {
		return c.Close()
	}
	return nil
}

// Drop runs when the baton leaves the table. A stream whose pool went away
// without Close, or that was poisoned, still closes the handle it owns.
func (s *streamState) Drop() {
	if err := s.closeHandle(); err != nil {
		s.log.Warn("closing dropped stream handle failed", zap.Error(err))
	}
}

var _ io.ReadWriteCloser = (*Stream)(nil)

// NewStream creates a native stream over handle, which must be an
// io.Reader, an io.Writer or both. The stream reads only if handle is a
// reader and writes only if it is a writer. Closing the stream closes
// handle when it is an io.Closer, unless disown is set.
func NewStream(rt *native.Runtime, handle any, disown bool) (*Stream, error) {
	_, canRead := handle.(io.Reader)
	_, canWrite := handle.(io.Writer)
	if !canRead && !canWrite {
		return nil, errors.InvalidInput(errors.PhaseStream, fmt.Sprintf("%T is neither an io.Reader nor an io.Writer", handle))
	}

	reg, err := ownedRegion(rt, errors.PhaseStream, "stream")
	if err != nil {
		return nil, err
	}
	state := &streamState{handle: handle, log: rt.Logger(), owns: !disown}
	baton, err := rt.Batons().Insert(resource.TypeStreamBaton, state)
	if err != nil {
		reg.release()
		return nil, errors.New(errors.PhaseStream, errors.KindNativeCall).Op("box handle").Cause(err).Build()
	}
	// the baton lives as long as the pool the native stream is in
	reg.pool.OnCleanup(func() { _ = rt.Batons().Remove(baton) })

	s, st := rt.StreamCreate(reg.pool, baton)
	if st != native.StatusOK {
		reg.release()
		return nil, statusErr(errors.PhaseStream, "stream_create", st)
	}

	read, write, closer := registerCallbacks(rt)
	if canRead {
		st = rt.StreamSetRead(s, read)
	}
	if st == native.StatusOK && canWrite {
		st = rt.StreamSetWrite(s, write)
	}
	if st == native.StatusOK && !disown {
		st = rt.StreamSetClose(s, closer)
	}
	if st != native.StatusOK {
		reg.release()
		return nil, statusErr(errors.PhaseStream, "stream_set", st)
	}

	return &Stream{region: reg, s: s, state: state}, nil
}

// readOnly and writeOnly hide the other half of a handle that implements
// both io.Reader and io.Writer.
type readOnly struct{ io.Reader }

type writeOnly struct{ io.Writer }

// NewReadStream creates a read-only stream over r.
func NewReadStream(rt *native.Runtime, r io.Reader, disown bool) (*Stream, error) {
	return NewStream(rt, readOnly{r}, disown)
}

// NewWriteStream creates a write-only stream over w.
func NewWriteStream(rt *native.Runtime, w io.Writer, disown bool) (*Stream, error) {
	return NewStream(rt, writeOnly{w}, disown)
}

func registerCallbacks(rt *native.Runtime) (read, write, closer native.FuncRef) {
	read = rt.RegisterRead(callbackName, func(baton resource.Handle, buf nativecoll.Ptr, n uint32) (uint32, native.Status) {
		var got uint32
		st := withState(rt, baton, "read", func(s *streamState) error {
			tmp := make([]byte, n)
			k, err := readSome(s.handle.(io.Reader), tmp)
			if err != nil {
				return err
			}
			if err := rt.Memory().Write(uint32(buf), tmp[:k]); err != nil {
				return err
			}
			got = uint32(k)
			return nil
		})
		return got, st
	})
	write = rt.RegisterWrite(callbackName, func(baton resource.Handle, data nativecoll.Ptr, n uint32) (uint32, native.Status) {
		st := withState(rt, baton, "write", func(s *streamState) error {
			view, err := rt.Memory().Read(uint32(data), n)
			if err != nil {
				return err
			}
			// the writer may retain its argument
			b := append([]byte(nil), view...)
			k, err := s.handle.(io.Writer).Write(b)
			if err != nil {
				return err
			}
			if k != len(b) {
				return io.ErrShortWrite
			}
			return nil
		})
		if st != native.StatusOK {
			return 0, st
		}
		return n, st
	})
	closer = rt.RegisterClose(callbackName, func(baton resource.Handle) native.Status {
		return withState(rt, baton, "close", func(s *streamState) error {
			return s.closeHandle()
		})
	})
	return read, write, closer
}

// maxEmptyReads bounds how often a reader may return nothing without an
// error before it is treated as broken.
const maxEmptyReads = 100

// readSome returns what a single Read of r yields, retrying only reads that
// return no data and no error. A return of 0 bytes is end of stream.
func readSome(r io.Reader, b []byte) (int, error) {
	for range maxEmptyReads {
		k, err := r.Read(b)
		if errors.Is(err, io.EOF) {
			return k, nil
		}
		if k > 0 || err != nil {
			return k, err
		}
	}
	return 0, io.ErrNoProgress
}

func closerOf(handle any) io.Closer {
	switch h := handle.(type) {
	case readOnly:
		c, _ := h.Reader.(io.Closer)
		return c
	case writeOnly:
		c, _ := h.Writer.(io.Closer)
		return c
	case io.Closer:
		return h
	}
	return nil
}

// withState runs a callback against the baton's state. Errors and panics
// are recorded on the state and reported as StatusCallbackAbort; nothing
// crosses back into native control flow.
func withState(rt *native.Runtime, baton resource.Handle, op string, fn func(*streamState) error) (st native.Status) {
	v, ok := rt.Batons().Borrow(baton, resource.TypeStreamBaton)
	if !ok {
		return native.StatusBadArgument
	}
	defer rt.Batons().ReturnBorrow(baton)
	s := v.(*streamState)

	defer func() {
		if r := recover(); r != nil {
			s.err = errors.CallbackContract(errors.PhaseStream, op, fmt.Errorf("panic: %v", r))
			st = native.StatusCallbackAbort
		}
		if st == native.StatusCallbackAbort {
			rt.Logger().Warn("stream callback failed",
				zap.String("op", op),
				zap.Uint32("baton", uint32(baton)),
				zap.Error(s.err))
		}
	}()

	if err := fn(s); err != nil {
		s.err = errors.CallbackContract(errors.PhaseStream, op, err)
		return native.StatusCallbackAbort
	}
	return native.StatusOK
}

// recorded returns the failure a callback of s, or of a stream s wraps,
// recorded during the last native call.
func (s *Stream) recorded() error {
	for cur := s; cur != nil; cur = cur.inner {
		if cur.state != nil && cur.state.err != nil {
			return cur.state.err
		}
	}
	return nil
}

// fail converts a failed status, poisoning the stream on callback aborts.
func (s *Stream) fail(op string, st native.Status) error {
	if st != native.StatusCallbackAbort {
		return statusErr(errors.PhaseStream, op, st)
	}
	s.poisoned = s.recorded()
	if s.poisoned == nil {
		s.poisoned = errors.CallbackContract(errors.PhaseStream, op, nil)
	}
	return s.poisoned
}

func (s *Stream) ready(op string) error {
	if s.poisoned != nil {
		return s.poisoned
	}
	return s.check(errors.PhaseStream, op)
}

// Read reads up to len(b) bytes through the native stream. It returns
// io.EOF once the source is exhausted.
func (s *Stream) Read(b []byte) (int, error) {
	if err := s.ready("read"); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	n := uint32(min(len(b), 1<<30))

	var got int
	err := pool.With(s.rt.Allocator(), s.pool, "stream-read", func(p *pool.Pool) error {
		buf, err := p.Alloc(n, 1)
		if err != nil {
			return poolErr(errors.PhaseStream, "read", err)
		}
		k, st := s.rt.StreamRead(s.s, buf, n)
		if st != native.StatusOK {
			return s.fail("read", st)
		}
		if k == 0 {
			return nil
		}
		view, err := s.rt.Memory().Read(uint32(buf), k)
		if err != nil {
			return err
		}
		got = copy(b, view)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if got == 0 {
		return 0, io.EOF
	}
	return got, nil
}

// Write writes b through the native stream.
func (s *Stream) Write(b []byte) (int, error) {
	if err := s.ready("write"); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	n := uint32(len(b))
	if int(n) != len(b) {
		return 0, errors.InvalidInput(errors.PhaseStream, "write larger than native address space")
	}

	err := pool.With(s.rt.Allocator(), s.pool, "stream-write", func(p *pool.Pool) error {
		buf, err := p.Alloc(n, 1)
		if err != nil {
			return poolErr(errors.PhaseStream, "write", err)
		}
		if err := s.rt.Memory().Write(uint32(buf), b); err != nil {
			return err
		}
		if _, st := s.rt.StreamWrite(s.s, buf, n); st != native.StatusOK {
			return s.fail("write", st)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close closes the native stream, which closes the underlying handle unless
// the stream was disowned, then releases the stream's pool. Closing twice
// is a no-op. A poisoned stream returns its callback error; its handle is
// closed when the baton is dropped with the pool.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	// a poisoned stream is released without running its callbacks again
	err := s.poisoned
	if err == nil && s.check(errors.PhaseStream, "close") == nil {
		if st := s.rt.StreamClose(s.s); st != native.StatusOK {
			err = s.fail("close", st)
		}
	}
	s.release()
	return err
}

// Handle returns the native stream address.
func (s *Stream) Handle() nativecoll.Ptr { return s.s }

// CopyStream copies everything readable from from into to, then closes
// both native streams.
func CopyStream(from, to *Stream) error {
	if err := from.ready("copy"); err != nil {
		return err
	}
	if err := to.ready("copy"); err != nil {
		return err
	}
	st := from.rt.StreamCopy(from.s, to.s)
	if st == native.StatusOK {
		return nil
	}
	if st != native.StatusCallbackAbort {
		return statusErr(errors.PhaseStream, "copy", st)
	}
	// either side may have aborted
	for _, s := range []*Stream{from, to} {
		if err := s.recorded(); err != nil {
			s.poisoned = err
			return err
		}
	}
	return errors.CallbackContract(errors.PhaseStream, "copy", nil)
}

// Compressed returns a stream that inflates what it reads from s and
// deflates what is written to it into s, using zlib framing. It lives in a
// sub-pool of s and is released together with s. Closing it finishes the
// compressed data and closes s's native stream.
func Compressed(s *Stream) (*Stream, error) {
	if err := s.ready("compressed"); err != nil {
		return nil, err
	}
	p, err := s.pool.Child("compressed")
	if err != nil {
		return nil, poolErr(errors.PhaseStream, "compressed", err)
	}
	zs, st := s.rt.StreamCompressed(p, s.s)
	if st != native.StatusOK {
		p.Destroy()
		return nil, statusErr(errors.PhaseStream, "stream_compressed", st)
	}
	return &Stream{region: newRegion(s.rt, p, Owned), s: zs, inner: s}, nil
}
