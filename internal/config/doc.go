// ABOUTME: Package documentation for the config package
// ABOUTME: YAML configuration with env expansion for the gateway and admin CLI

// Package config loads the lantern-gateway YAML configuration. Values may
// reference environment variables as ${VAR_NAME}; duration fields accept Go
// duration strings.
package config
