package wasihttp

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/resource"
)

// FutureStatus is the state of a response future.
type FutureStatus uint8

const (
	Pending FutureStatus = iota
	Ready
	Failed
)

func (s FutureStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FutureState is the outcome of one poll. Response is set when Ready;
// Err carries the transport failure when Failed.
type FutureState struct {
	Response *IncomingResponse
	Err      error
	Status   FutureStatus
}

// FutureResponse is a pending response to a submitted request.
// Once it settles the future handle is dropped and the outcome is kept.
type FutureResponse struct {
	settled *FutureState
	ref
}

// Poll asks the host once whether the response is available.
func (f *FutureResponse) Poll() (FutureState, error) {
	if f.settled != nil {
		return *f.settled, nil
	}
	if err := f.check(errors.PhaseResponse); err != nil {
		return FutureState{}, err
	}

	c := f.c
	scratch := c.codec.Scratch()
	defer scratch.Close()

	res, err := scratch.Alloc(abi.FutureGetLayout.Size, abi.FutureGetLayout.Align)
	if err != nil {
		return FutureState{}, err
	}
	c.imports.FutureIncomingResponseGet(uint32(f.h), res)

	out, err := abi.LiftFutureResult(c.codec.Memory(), res)
	if err != nil {
		return FutureState{}, err
	}
	if !out.Ready {
		return FutureState{Status: Pending}, nil
	}

	state := FutureState{Status: Failed}
	if out.Result.OK {
		r, err := c.adopt(errors.PhaseResponse, resource.KindIncomingResponse, out.Result.Value)
		if err != nil {
			return FutureState{}, err
		}
		state = FutureState{Status: Ready, Response: &IncomingResponse{ref: r}}
	} else {
		state.Err = errors.Transport("future-incoming-response-get", out.Result.Value)
		c.logger.Debug("request failed",
			zap.Uint32("future", uint32(f.h)),
			zap.Uint32("code", out.Result.Value))
	}

	f.settle(&state)
	return state, nil
}

func (f *FutureResponse) settle(state *FutureState) {
	f.settled = state
	if f.release() {
		f.c.imports.DropFutureIncomingResponse(uint32(f.h))
	}
}

// Resolve waits for the response. In polling mode it polls at the client's
// interval until the future settles or ctx ends; giving up leaves the future
// live so the caller can drop it. A transport failure is returned as an error
// and yields no response.
func (f *FutureResponse) Resolve(ctx context.Context) (*IncomingResponse, error) {
	state, err := f.wait(ctx)
	if err != nil {
		return nil, err
	}
	if state.Status == Failed {
		return nil, state.Err
	}
	return state.Response, nil
}

func (f *FutureResponse) wait(ctx context.Context) (FutureState, error) {
	if f.c.futureMode == FutureBlocking {
		state, err := f.Poll()
		if err != nil {
			return state, err
		}
		if state.Status == Pending {
			return state, errors.New(errors.PhaseResponse, errors.KindInvalidState).
				Call("future-incoming-response-get").
				Detail("blocking get returned no value").
				Build()
		}
		return state, nil
	}

	limiter := rate.NewLimiter(rate.Every(f.c.pollInterval), 1)
	polls := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			f.c.logger.Debug("stopped polling",
				zap.Uint32("future", uint32(f.h)),
				zap.Int("polls", polls),
				zap.Error(err))
			return FutureState{}, errors.Canceled(errors.PhaseResponse, ctxErr(ctx, err))
		}
		state, err := f.Poll()
		polls++
		if err != nil || state.Status != Pending {
			return state, err
		}
	}
}

// ctxErr prefers the context's own error over the limiter's wording. The
// limiter refuses a wait that would overrun the deadline before the context
// expires, so the remaining sliver is waited out.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		if _, ok := ctx.Deadline(); !ok {
			return err
		}
		<-ctx.Done()
	}
	return ctx.Err()
}

// Drop abandons a future that has not settled.
func (f *FutureResponse) Drop() error {
	if !f.release() {
		return errors.InvalidHandle(errors.PhaseResponse, "future-incoming-response", uint32(f.h))
	}
	f.c.imports.DropFutureIncomingResponse(uint32(f.h))
	return nil
}
