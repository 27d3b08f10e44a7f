// Package patch applies versioned database migrations. Model changes in
// code that require bulk updates to already stored data register a Patch;
// the Runner detects which ones the graph still needs, applies them in
// order and records the new graph version.
package patch

import (
	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/persistence"
)

// Patch is one migration step, bound to the application version that
// introduced it. Patches sharing a version run ordered by Priority,
// lowest first.
type Patch interface {
	// Version is the semantic application version this patch belongs to.
	Version() string
	// Priority orders patches within the same version.
	Priority() int
	// Update performs the migration. It runs inside the version batch
	// transaction and must not commit or roll back itself.
	Update(tx graph.Tx, engine *persistence.Engine) error
}
