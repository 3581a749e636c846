// Package env resolves {{...}} templates in requests.
//
// It provides:
//   - dotenv file loading and environment sections from the config file
//   - {{name}} variables and {{source.name}} captures from earlier calls
//   - {{$VAR}} process environment lookups
//   - {{fn(args)}} built-in function calls
//   - a request transform that interpolates URL, query, headers and body
package env
