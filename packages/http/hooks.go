package http

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// RequestTransform runs before dispatch and may mutate the call in place.
// Returning an error aborts the call; the caller still receives an envelope.
type RequestTransform func(ctx context.Context, req *RequestConfig) error

// ResponseTransform runs after normalization and may mutate the envelope.
type ResponseTransform func(ctx context.Context, env *Envelope) error

// Monitor observes a completed call. It receives a copy of the envelope and
// its error is logged, never returned to the caller.
type Monitor func(ctx context.Context, env *Envelope) error

// HookID identifies one registration. Functions are not comparable in Go,
// so removal goes through the ID returned at registration.
type HookID uint64

var nextHookID atomic.Uint64

func newHookID() HookID {
	return HookID(nextHookID.Add(1))
}

type entry[F any] struct {
	id HookID
	fn F
}

// hookList is an ordered registration list safe for concurrent use.
type hookList[F any] struct {
	mu      sync.RWMutex
	entries []entry[F]
}

func (l *hookList[F]) add(fn F) HookID {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := newHookID()
	l.entries = append(l.entries, entry[F]{id: id, fn: fn})
	return id
}

func (l *hookList[F]) remove(id HookID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (l *hookList[F]) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *hookList[F]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// snapshot copies the functions in registration order.
func (l *hookList[F]) snapshot() []F {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]F, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.fn
	}
	return out
}

// PanicError carries a value recovered from a panicking transform or monitor.
type PanicError struct {
	Stage string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Stage, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// guard runs fn and converts a panic into a *PanicError.
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Stage: stage, Value: r}
		}
	}()
	return fn()
}
