// Package config loads and validates sheetpulse configuration from
// SHEETPULSE_-prefixed environment variables.
package config
