package mcp

import (
	"errors"

	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
)

// ErrMissingSearchService indicates the required search port is unset.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingInitializer indicates the required initializer port is unset.
var ErrMissingInitializer = errors.New("mcp: initializer is required")

// Ports aggregates the driving ports required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides search and snippet capabilities.
	Search driving.SearchService

	// Init loads the index before the first query.
	Init driving.Initializer

	// Assistant answers grounded questions. Optional; the ask tool is
	// only registered when set.
	Assistant driving.AssistantService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Init == nil {
		return ErrMissingInitializer
	}
	return nil
}
