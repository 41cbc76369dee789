// Package client is a thin HTTP client for the snippet API, used by
// the CLI subcommands.
package client
