// Package config loads the service configuration from an optional JSON or
// YAML file, a .env file and environment variables, in that order of
// increasing precedence.
package config
