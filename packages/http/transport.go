package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Doer is the transport collaborator. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// exchange is the outcome of one transport attempt with the body fully read.
type exchange struct {
	resp *http.Response
	body []byte
}

// invokeTimed performs exactly one transport call bounded by timeout and by
// the external context. Both reduce to one internal cancellation whose cause
// is ErrTimeout for the timer or the external cause otherwise.
func invokeTimed(external context.Context, doer Doer, timeout time.Duration, build func(ctx context.Context) (*http.Request, error)) (*exchange, error) {
	if external == nil {
		external = context.Background()
	}

	ctx, cancel := context.WithCancelCause(context.WithoutCancel(external))
	defer cancel(nil)

	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			cancel(ErrTimeout)
		})
		defer timer.Stop()
	}

	if external.Err() != nil {
		cancel(context.Cause(external))
	}
	stop := context.AfterFunc(external, func() {
		cancel(context.Cause(external))
	})
	defer stop()

	req, err := build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, wrapAbort(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapAbort(ctx, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &exchange{resp: resp, body: body}, nil
}

func wrapAbort(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	return &AbortError{Reason: context.Cause(ctx), Err: err}
}
