// Package config loads hitfetch settings.
//
// It provides functionality for:
//   - Loading configuration from .hitfetch.yaml, .hitfetch.yml or hitfetch.config.json
//   - Default configuration values and field-by-field merging
//   - Named environment sections for template variables
//   - Hot reloading with Watch
package config
