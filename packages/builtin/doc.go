// Package builtin provides the functions available to {{fn()}} expressions
// in request templates.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(), date(layout): current UTC time
//   - timestamp(), timestampMs(): Unix time
//   - random(min, max), randomString(length)
//   - base64(value), base64Decode(value), basicAuth(user, pass)
//   - sha256(value), hmacSHA256(key, value)
//   - urlEncode(value), urlDecode(value)
//   - env(name, fallback)
package builtin
