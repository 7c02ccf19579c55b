package abi

import (
	"math"
	"time"
)

// RequestOptions are the per-request transport timeouts carried in the
// reserved slots of the handle call. A zero duration leaves the host default.
type RequestOptions struct {
	ConnectTimeout      time.Duration
	FirstByteTimeout    time.Duration
	BetweenBytesTimeout time.Duration
}

// Slots lowers the options into the seven reserved handle arguments.
// Slot 0 flags presence; slots 1-3 hold milliseconds; slots 4-6 are zero.
// A nil receiver yields all zeros.
func (o *RequestOptions) Slots() [7]uint32 {
	var s [7]uint32
	if o == nil {
		return s
	}
	s[0] = 1
	s[1] = millis(o.ConnectTimeout)
	s[2] = millis(o.FirstByteTimeout)
	s[3] = millis(o.BetweenBytesTimeout)
	return s
}

// OptionsFromSlots lifts the reserved handle arguments. It returns nil when
// the presence flag is clear.
func OptionsFromSlots(a, b, c, d uint32) *RequestOptions {
	if a == 0 {
		return nil
	}
	return &RequestOptions{
		ConnectTimeout:      time.Duration(b) * time.Millisecond,
		FirstByteTimeout:    time.Duration(c) * time.Millisecond,
		BetweenBytesTimeout: time.Duration(d) * time.Millisecond,
	}
}

func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms == 0 {
		return 1
	}
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}
