// Package domain contains the core business entities and rules for
// sitesearch. Domain types have no dependencies on infrastructure;
// they are pure data structures and business logic.
//
// Key entities:
//   - Document: a corpus entry (one page or post of the site)
//   - SearchResult: a scored hit produced by a query
//   - Progress / InitStatus: initialization state broadcast to consumers
package domain
