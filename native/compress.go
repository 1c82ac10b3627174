package native

import (
	"errors"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/pool"
	"github.com/wippyai/nativecoll/resource"
)

// compressChunk is the size of the buffer a compressed stream stages
// through when talking to the stream it wraps.
const compressChunk = 4096

// maxIdleReads bounds consecutive empty reads before a reader is treated as
// stuck.
const maxIdleReads = 100

type compressed struct {
	r       *Runtime
	inner   nativecoll.Ptr
	scratch nativecoll.Ptr
	zr      io.ReadCloser
	zw      *zlib.Writer
	read    uint64 // compressed bytes taken from inner
	eof     bool
}

func (r *Runtime) registerBuiltins() {
	r.zread = r.RegisterRead("zlib", r.zlibRead)
	r.zwrite = r.RegisterWrite("zlib", r.zlibWrite)
	r.zclose = r.RegisterClose("zlib", r.zlibClose)
}

// StreamCompressed returns a stream in p that inflates what it reads from
// inner and deflates what is written to it into inner, using zlib framing.
// Closing it finishes the compressed data and closes inner.
func (r *Runtime) StreamCompressed(p *pool.Pool, inner nativecoll.Ptr) (nativecoll.Ptr, Status) {
	if _, st := r.readStream(inner); st != StatusOK {
		return nativecoll.Null, st
	}
	scratch, err := p.Alloc(compressChunk, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}

	c := &compressed{r: r, inner: inner, scratch: scratch}
	h, err := r.batons.Insert(resource.TypeCompressedBaton, c)
	if err != nil {
		return nativecoll.Null, StatusFault
	}
	p.OnCleanup(func() { _ = r.batons.Remove(h) })

	s, st := r.StreamCreate(p, h)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	if st := writeFields(r.mem, s+stRead, uint32(r.zread), uint32(r.zwrite), uint32(r.zclose)); st != StatusOK {
		return nativecoll.Null, st
	}
	return s, StatusOK
}

func (r *Runtime) borrowCompressed(baton resource.Handle) (*compressed, bool) {
	v, ok := r.batons.Borrow(baton, resource.TypeCompressedBaton)
	if !ok {
		return nil, false
	}
	return v.(*compressed), true
}

func (r *Runtime) zlibRead(baton resource.Handle, buf nativecoll.Ptr, n uint32) (uint32, Status) {
	c, ok := r.borrowCompressed(baton)
	if !ok {
		return 0, StatusBadArgument
	}
	defer r.batons.ReturnBorrow(baton)

	if c.eof || n == 0 {
		return 0, StatusOK
	}
	if c.zr == nil {
		zr, err := zlib.NewReader(innerReader{c})
		if err != nil && c.read == 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			// an empty inner stream is empty, not corrupt
			c.eof = true
			return 0, StatusOK
		}
		if err != nil {
			return 0, streamStatus(err)
		}
		c.zr = zr
	}

	tmp := make([]byte, n)
	got, err := c.inflate(tmp)
	if err != nil {
		return 0, streamStatus(err)
	}
	if got > 0 {
		if err := r.mem.Write(uint32(buf), tmp[:got]); err != nil {
			return 0, StatusFault
		}
	}
	return uint32(got), StatusOK
}

func (r *Runtime) zlibWrite(baton resource.Handle, data nativecoll.Ptr, n uint32) (uint32, Status) {
	c, ok := r.borrowCompressed(baton)
	if !ok {
		return 0, StatusBadArgument
	}
	defer r.batons.ReturnBorrow(baton)

	src, st := r.readBytes(data, n)
	if st != StatusOK {
		return 0, st
	}
	if c.zw == nil {
		c.zw = zlib.NewWriter(innerWriter{c})
	}
	if _, err := c.zw.Write(src); err != nil {
		return 0, streamStatus(err)
	}
	return n, StatusOK
}

func (r *Runtime) zlibClose(baton resource.Handle) Status {
	c, ok := r.borrowCompressed(baton)
	if !ok {
		return StatusBadArgument
	}
	defer r.batons.ReturnBorrow(baton)

	result := StatusOK
	if c.zw != nil {
		if err := c.zw.Close(); err != nil {
			result = streamStatus(err)
		}
	}
	if c.zr != nil {
		_ = c.zr.Close()
	}
	if st := r.StreamClose(c.inner); result == StatusOK {
		result = st
	}
	return result
}

// inflate reads at least one byte into b unless the compressed data ends.
// Only a clean end, checksum included, is io.EOF from the decompressor; data
// cut short surfaces as io.ErrUnexpectedEOF and is returned as an error.
func (c *compressed) inflate(b []byte) (int, error) {
	for idle := 0; ; idle++ {
		k, err := c.zr.Read(b)
		if errors.Is(err, io.EOF) {
			c.eof = true
			return k, nil
		}
		if err != nil || k > 0 {
			return k, err
		}
		if idle == maxIdleReads {
			return 0, io.ErrNoProgress
		}
	}
}

// streamStatus reports the status an inner stream failed with, or
// StatusStreamMalformed for bad compressed data.
func streamStatus(err error) Status {
	var se statusError
	if errors.As(err, &se) {
		return Status(se)
	}
	return StatusStreamMalformed
}

// innerReader reads the wrapped native stream through the scratch buffer.
type innerReader struct{ c *compressed }

func (ir innerReader) Read(b []byte) (int, error) {
	c := ir.c
	n := uint32(min(len(b), compressChunk))
	if n == 0 {
		return 0, nil
	}
	got, st := c.r.StreamRead(c.inner, c.scratch, n)
	if st != StatusOK {
		return 0, statusError(st)
	}
	if got == 0 {
		return 0, io.EOF
	}
	view, err := c.r.mem.Read(uint32(c.scratch), got)
	if err != nil {
		return 0, statusError(StatusFault)
	}
	c.read += uint64(got)
	return copy(b, view), nil
}

// innerWriter writes to the wrapped native stream through the scratch
// buffer.
type innerWriter struct{ c *compressed }

func (iw innerWriter) Write(b []byte) (int, error) {
	c := iw.c
	written := 0
	for len(b) > 0 {
		chunk := b[:min(len(b), compressChunk)]
		if err := c.r.mem.Write(uint32(c.scratch), chunk); err != nil {
			return written, statusError(StatusFault)
		}
		if _, st := c.r.StreamWrite(c.inner, c.scratch, uint32(len(chunk))); st != StatusOK {
			return written, statusError(st)
		}
		written += len(chunk)
		b = b[len(chunk):]
	}
	return written, nil
}
