package http

import (
	"context"

	"github.com/google/uuid"
)

// DefaultRequestIDHeader is the header RequestIDTransform uses when none is given.
const DefaultRequestIDHeader = "X-Request-ID"

// RequestIDTransform returns a request transform that tags each call with a
// random UUID, unless the call already carries the header.
func RequestIDTransform(header string) RequestTransform {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return func(_ context.Context, r *RequestConfig) error {
		if _, ok := r.Headers.Lookup(header); ok {
			return nil
		}
		r.SetHeader(header, uuid.NewString())
		return nil
	}
}
