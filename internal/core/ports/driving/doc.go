// Package driving provides interfaces for use-case entry points
// (primary/inbound ports). UI surfaces (CLI, TUI, MCP) depend on these
// interfaces, never on concrete services.
package driving
