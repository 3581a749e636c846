// Package http is the hitfetch request client.
//
// Every call runs through one pipeline and resolves to an *Envelope, never
// to a Go error:
//   - request transforms mutate the call in registration order
//   - the URL, headers and body are built and sent in exactly one attempt,
//     bounded by the call timeout and the caller's context
//   - the response is normalized and classified into a Problem
//   - response transforms mutate the envelope in registration order
//   - monitors observe a copy of the final envelope
//
// Callers branch on Envelope.OK and Envelope.Problem.
package http
