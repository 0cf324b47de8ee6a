// Package config loads aigoflow settings. Values come from an optional YAML
// file, then a .env file, then AIGOFLOW_* environment variables; anything still
// unset takes the defaults of the configured provider.
package config
