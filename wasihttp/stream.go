package wasihttp

import (
	"context"
	"io"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/memory"
)

// InputStream is a response body. Short reads are normal; only the
// end-of-stream flag marks completion.
type InputStream struct {
	ref
	eos    bool
	failed bool
}

// Read asks the host for up to max bytes. The returned bytes are a copy.
func (s *InputStream) Read(max uint32) ([]byte, bool, error) {
	if s.failed || !s.Live() {
		return nil, false, errors.StreamClosed("streams.read", uint32(s.h))
	}
	if s.eos {
		return nil, true, nil
	}
	if max == 0 {
		return []byte{}, false, nil
	}

	c := s.c
	scratch := c.codec.Scratch()
	defer scratch.Close()

	buf, err := scratch.Alloc(max, 1)
	if err != nil {
		return nil, false, err
	}
	res, err := scratch.Alloc(abi.ReadResultLayout.Size, abi.ReadResultLayout.Align)
	if err != nil {
		return nil, false, err
	}
	c.imports.StreamsRead(uint32(s.h), uint64(max), buf, res)

	out, err := abi.LiftReadResult(c.codec.Memory(), res)
	if err != nil {
		return nil, false, err
	}
	if !out.OK {
		s.failed = true
		if out.Code == abi.StreamClosed {
			return nil, false, errors.StreamClosed("streams.read", uint32(s.h))
		}
		return nil, false, errors.StreamIO("streams.read", uint32(s.h), "last operation failed")
	}
	if out.Written > max {
		s.failed = true
		return nil, false, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Call("streams.read").
			Value(out.Written).
			Detail("host wrote %d bytes into a %d byte buffer", out.Written, max).
			Build()
	}

	data, err := c.codec.DecodeBytes(memory.Encoded{Ptr: buf, Len: out.Written})
	if err != nil {
		return nil, false, err
	}
	s.eos = out.EOS
	return data, out.EOS, nil
}

// ReadAll reads until end of stream. Zero-byte reads are retried at the
// client's poll interval until ctx ends.
func (s *InputStream) ReadAll(ctx context.Context) ([]byte, error) {
	var out []byte
	limiter := rate.NewLimiter(rate.Every(s.c.pollInterval), 1)
	for {
		chunk, eos, err := s.Read(s.c.readChunk)
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
		if eos {
			return out, nil
		}
		if len(chunk) == 0 {
			if err := limiter.Wait(ctx); err != nil {
				return out, errors.Canceled(errors.PhaseStream, ctxErr(ctx, err))
			}
		}
	}
}

// Reader adapts the stream to io.Reader. Waits for data end with ctx.
func (s *InputStream) Reader(ctx context.Context) io.Reader {
	return &streamReader{
		s:       s,
		ctx:     ctx,
		limiter: rate.NewLimiter(rate.Every(s.c.pollInterval), 1),
	}
}

// EOS reports whether the host has signalled end of stream.
func (s *InputStream) EOS() bool {
	return s.eos
}

// Drop releases the stream.
func (s *InputStream) Drop() error {
	if !s.release() {
		return errors.InvalidHandle(errors.PhaseStream, "input-stream", uint32(s.h))
	}
	s.c.imports.DropInputStream(uint32(s.h))
	return nil
}

type streamReader struct {
	s       *InputStream
	ctx     context.Context
	limiter *rate.Limiter
}

func (r *streamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.s.eos {
		return 0, io.EOF
	}
	want := uint32(len(p))
	if uint64(len(p)) > uint64(^uint32(0)) {
		want = ^uint32(0)
	}
	for {
		chunk, eos, err := r.s.Read(want)
		if err != nil {
			return 0, err
		}
		n := copy(p, chunk)
		if n > 0 {
			return n, nil
		}
		if eos {
			return 0, io.EOF
		}
		if err := r.limiter.Wait(r.ctx); err != nil {
			return 0, errors.Canceled(errors.PhaseStream, ctxErr(r.ctx, err))
		}
	}
}

// OutputStream is a request body. The host may accept fewer bytes than
// offered; WriteAll resubmits the remainder.
type OutputStream struct {
	ref
	failed bool
}

// WriteChunk offers data once and returns how many bytes the host accepted.
func (s *OutputStream) WriteChunk(data []byte) (uint32, error) {
	if s.failed || !s.Live() {
		return 0, errors.StreamClosed("streams.write", uint32(s.h))
	}
	if len(data) == 0 {
		return 0, nil
	}

	c := s.c
	scratch := c.codec.Scratch()
	defer scratch.Close()

	enc, err := c.codec.EncodeBytes(data, scratch)
	if err != nil {
		return 0, err
	}
	res, err := scratch.Alloc(abi.WriteResultLayout.Size, abi.WriteResultLayout.Align)
	if err != nil {
		return 0, err
	}
	c.imports.StreamsWrite(uint32(s.h), enc.Ptr, enc.Len, res)

	out, err := abi.LiftWriteResult(c.codec.Memory(), res)
	if err != nil {
		return 0, err
	}
	if !out.OK {
		s.failed = true
		if out.Value == abi.StreamClosed {
			return 0, errors.StreamClosed("streams.write", uint32(s.h))
		}
		return 0, errors.StreamIO("streams.write", uint32(s.h), "last operation failed")
	}
	if out.Value > enc.Len {
		s.failed = true
		return 0, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Call("streams.write").
			Value(out.Value).
			Detail("host accepted %d of %d bytes", out.Value, enc.Len).
			Build()
	}
	return out.Value, nil
}

// WriteAll writes data completely. Zero-byte acceptances are retried at the
// client's poll interval; too many in a row fail with a stream I/O error.
func (s *OutputStream) WriteAll(ctx context.Context, data []byte) error {
	limiter := rate.NewLimiter(rate.Every(s.c.pollInterval), 1)
	stalled := 0
	for len(data) > 0 {
		n, err := s.WriteChunk(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if n > 0 {
			stalled = 0
			continue
		}

		stalled++
		if stalled >= s.c.maxStalled {
			s.c.logger.Warn("output stream stalled",
				zap.Uint32("stream", uint32(s.h)),
				zap.Int("attempts", stalled),
				zap.Int("remaining", len(data)))
			return errors.StreamIO("streams.write", uint32(s.h), "host accepted no bytes")
		}
		if err := limiter.Wait(ctx); err != nil {
			return errors.Canceled(errors.PhaseStream, ctxErr(ctx, err))
		}
	}
	return nil
}

// Writer adapts the stream to io.Writer.
func (s *OutputStream) Writer(ctx context.Context) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		if err := s.WriteAll(ctx, p); err != nil {
			return 0, err
		}
		return len(p), nil
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Close drops the stream, which finishes the body. Closing twice is a no-op.
func (s *OutputStream) Close() error {
	if !s.release() {
		return nil
	}
	s.c.imports.DropOutputStream(uint32(s.h))
	return nil
}
