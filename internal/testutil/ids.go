// Package testutil provides deterministic stand-ins for run plumbing.
package testutil

// FixedIDGenerator returns the same ID every time.
//
// Journal fixtures and golden files stay byte-stable when every test run
// produces the same run ID.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id. An empty id
// defaults to "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
// Implements archive.RunIDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
