// Package capture extracts values from envelopes for use in later calls.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers
//   - Status code, duration and problem
//
// Captured values are stored in an env.Resolver and can be used in later
// calls via {{name}} or {{source.name}}, enabling request chaining.
package capture
