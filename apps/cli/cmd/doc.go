// Package cmd implements the hitfetch CLI commands using Cobra.
//
// Available commands:
//   - request: Send one call and print the envelope
//   - watch: Poll an endpoint, reloading the config file when it changes
//   - bench: Put an endpoint under sustained load and check thresholds
//   - history: Show calls recorded in the history database
//   - version: Show version information
//   - completion: Generate shell completion scripts
//
// Settings come from .hitfetch.yaml, HITFETCH_* environment variables and
// flags, in increasing precedence.
package cmd
