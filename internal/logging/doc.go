// Package logging provides opt-in file-based logging with rotation for
// CodeScope. When the --debug flag is set, debug-level logs are written to
// ~/.codescope/logs/ in addition to stderr.
//
// In MCP mode stdout carries JSON-RPC, so logs go to file only.
package logging
