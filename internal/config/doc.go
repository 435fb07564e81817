// Package config provides centralized configuration management for the
// machtms daemon. Configuration is read from a JSON file, with secrets
// optionally overridden from the environment, and sensible defaults
// applied for anything the operator leaves out.
package config
