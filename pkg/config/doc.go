// Package config loads the logging configuration.
//
// Values resolve in three layers, later winning: built-in defaults, an
// optional YAML file, then SCRIBE_* environment variables. Load
// validates the level name and compiles the redaction rules so bad
// configuration fails at startup rather than on the first event.
package config
