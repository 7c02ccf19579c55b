package host

import (
	"bytes"
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/resource"
)

// inputStreamResource serves a response body. End of stream is reported
// with the final read; reads after that fail with closed.
type inputStreamResource struct {
	r      io.ReadCloser
	cancel context.CancelFunc
	eos    bool
	failed bool
}

func (s *inputStreamResource) Drop() {
	_ = s.r.Close()
	if s.cancel != nil {
		s.cancel()
	}
}

// read fills p, looping over short reads until p is full, the source ends,
// or it fails.
func (s *inputStreamResource) read(p []byte) (int, error) {
	n, err := io.ReadFull(s.r, p)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		s.eos = true
		return n, nil
	}
	if err != nil {
		return n, err
	}
	return n, nil
}

// outputStreamResource appends to a request body buffer.
type outputStreamResource struct {
	buf    *bytes.Buffer
	closed bool
}

func (s *outputStreamResource) Drop() {
	s.closed = true
}

// StreamsRead reads up to length bytes into the guest buffer at bufPtr,
// which must hold at least length bytes.
func (h *Host) StreamsRead(stream uint32, length uint64, bufPtr, resultPtr uint32) {
	mem := h.memory()
	v, ok := h.resources.GetTyped(resource.Handle(stream), resource.KindInputStream)
	if !ok {
		h.lower(abi.LowerReadResult(mem, resultPtr, abi.ReadResult{Code: abi.StreamClosed}))
		return
	}
	s := v.(*inputStreamResource)
	switch {
	case s.eos:
		h.lower(abi.LowerReadResult(mem, resultPtr, abi.ReadResult{Code: abi.StreamClosed}))
		return
	case s.failed:
		h.lower(abi.LowerReadResult(mem, resultPtr, abi.ReadResult{Code: abi.StreamLastOperationFailed}))
		return
	}

	if length > uint64(h.maxReadChunk) {
		length = uint64(h.maxReadChunk)
	}
	if length == 0 {
		h.lower(abi.LowerReadResult(mem, resultPtr, abi.ReadResult{OK: true}))
		return
	}

	buf := make([]byte, length)
	n, err := s.read(buf)
	if err != nil {
		s.failed = true
		h.logger.Debug("stream read failed", zap.Uint32("stream", stream), zap.Error(err))
		h.lower(abi.LowerReadResult(mem, resultPtr, abi.ReadResult{Code: abi.StreamLastOperationFailed}))
		return
	}
	if n > 0 {
		if err := mem.Write(bufPtr, buf[:n]); err != nil {
			s.failed = true
			h.logger.Warn("stream read: guest buffer out of bounds", zap.Uint32("ptr", bufPtr), zap.Int("n", n))
			h.lower(abi.LowerReadResult(mem, resultPtr, abi.ReadResult{Code: abi.StreamLastOperationFailed}))
			return
		}
	}
	h.lower(abi.LowerReadResult(mem, resultPtr, abi.ReadResult{OK: true, Written: uint32(n), EOS: s.eos}))
}

// StreamsWrite accepts up to the host's write chunk limit.
func (h *Host) StreamsWrite(stream, ptr, length, resultPtr uint32) {
	mem := h.memory()
	v, ok := h.resources.GetTyped(resource.Handle(stream), resource.KindOutputStream)
	if !ok {
		h.lower(abi.LowerWriteResult(mem, resultPtr, abi.HandleResult{Value: abi.StreamClosed}))
		return
	}
	s := v.(*outputStreamResource)
	if s.closed {
		h.lower(abi.LowerWriteResult(mem, resultPtr, abi.HandleResult{Value: abi.StreamClosed}))
		return
	}

	if length > h.maxWrite {
		length = h.maxWrite
	}
	data, err := readBytes(mem, ptr, length)
	if err != nil {
		h.logger.Warn("stream write: guest buffer out of bounds", zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		h.lower(abi.LowerWriteResult(mem, resultPtr, abi.HandleResult{Value: abi.StreamLastOperationFailed}))
		return
	}
	s.buf.Write(data)
	h.lower(abi.LowerWriteResult(mem, resultPtr, abi.HandleResult{OK: true, Value: length}))
}

func (h *Host) DropInputStream(stream uint32) {
	h.drop(resource.KindInputStream, stream)
}

func (h *Host) DropOutputStream(stream uint32) {
	h.drop(resource.KindOutputStream, stream)
}
