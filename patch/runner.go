package patch

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver"
	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/persistence"
)

// The graph version lives on a dedicated metadata node.
const (
	metaLabel       = "GraphMetadata"
	metaKeyProperty = "kind"
	metaKey         = "graph"
	versionProperty = "version"
)

// initialVersion is assumed for graphs that never stored a version.
const initialVersion = "0.0.0"

type registered struct {
	patch   Patch
	version *semver.Version
}

// Runner collects patches and applies the ones a graph is missing.
type Runner struct {
	store   graph.Store
	engine  *persistence.Engine
	target  *semver.Version
	logger  *zap.Logger
	patches []registered
}

// NewRunner creates a runner migrating towards the given application
// version.
func NewRunner(store graph.Store, engine *persistence.Engine, target string, logger *zap.Logger) (*Runner, error) {
	version, err := semver.NewVersion(target)
	if err != nil {
		return nil, fmt.Errorf("invalid application version %q: %w", target, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: store, engine: engine, target: version, logger: logger}, nil
}

// Register adds patches to the runner. Versions must parse as semver.
func (r *Runner) Register(patches ...Patch) error {
	for _, p := range patches {
		version, err := semver.NewVersion(p.Version())
		if err != nil {
			return fmt.Errorf("patch %T carries invalid version %q: %w", p, p.Version(), err)
		}
		r.patches = append(r.patches, registered{patch: p, version: version})
	}
	return nil
}

// GraphVersion reads the version stored in the graph, initialVersion when
// none was recorded yet.
func (r *Runner) GraphVersion(ctx context.Context) (string, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	return r.readVersion(tx)
}

func (r *Runner) readVersion(tx graph.Tx) (string, error) {
	node, err := tx.FindNode(metaLabel, metaKeyProperty, metaKey)
	if graph.IsNotFound(err) {
		return initialVersion, nil
	}
	if err != nil {
		return "", err
	}
	version, ok, err := node.Property(versionProperty)
	if err != nil {
		return "", err
	}
	if !ok {
		return initialVersion, nil
	}
	return version.(string), nil
}

func (r *Runner) writeVersion(tx graph.Tx, version string) error {
	node, err := tx.FindNode(metaLabel, metaKeyProperty, metaKey)
	if graph.IsNotFound(err) {
		if node, err = tx.CreateNode(metaLabel); err != nil {
			return err
		}
		if err = node.SetProperty(metaKeyProperty, metaKey); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return node.SetProperty(versionProperty, version)
}

// Apply brings the graph up to the application version. Pending patches
// run grouped by version, each group in its own transaction together with
// the version bump, so a failing patch leaves the graph on the last fully
// patched version.
func (r *Runner) Apply(ctx context.Context) error {
	stored, err := r.GraphVersion(ctx)
	if err != nil {
		return err
	}
	graphVersion, err := semver.NewVersion(stored)
	if err != nil {
		return fmt.Errorf("graph carries invalid version %q: %w", stored, err)
	}
	r.logger.Info("graph version", zap.String("version", graphVersion.String()))

	if graphVersion.GreaterThan(r.target) {
		pending := r.pending(r.target, graphVersion)
		if len(pending) == 0 {
			r.logger.Warn("graph version is newer, no patches affected",
				zap.String("graph", graphVersion.String()),
				zap.String("application", r.target.String()))
			return nil
		}
		return fmt.Errorf("graph version %s is newer than application version %s, update required",
			graphVersion, r.target)
	}
	if graphVersion.Equal(r.target) {
		return nil
	}

	pending := r.pending(graphVersion, r.target)
	if len(pending) == 0 {
		r.logger.Info("graph version differs, no patches available",
			zap.String("from", graphVersion.String()), zap.String("to", r.target.String()))
		return r.bump(ctx, r.target.String())
	}

	r.logger.Info("graph version differs",
		zap.String("from", graphVersion.String()), zap.String("to", r.target.String()),
		zap.Int("patches", len(pending)))

	for start := 0; start < len(pending); {
		end := start
		for end < len(pending) && pending[end].version.Equal(pending[start].version) {
			end++
		}
		if err := r.applyBatch(ctx, pending[start:end]); err != nil {
			return err
		}
		start = end
	}
	return r.bump(ctx, r.target.String())
}

// pending returns registered patches with low < version <= high, ordered
// by version, then priority.
func (r *Runner) pending(low, high *semver.Version) []registered {
	var out []registered
	for _, p := range r.patches {
		if p.version.GreaterThan(low) && !p.version.GreaterThan(high) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].version.Equal(out[j].version) {
			return out[i].version.LessThan(out[j].version)
		}
		return out[i].patch.Priority() < out[j].patch.Priority()
	})
	return out
}

// applyBatch runs all patches of one version and records that version,
// atomically.
func (r *Runner) applyBatch(ctx context.Context, batch []registered) error {
	version := batch[0].version.String()
	r.logger.Info("applying patches", zap.String("version", version), zap.Int("count", len(batch)))
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	for _, p := range batch {
		r.logger.Info("applying patch", zap.String("patch", fmt.Sprintf("%T", p.patch)))
		if err := p.patch.Update(tx, r.engine); err != nil {
			tx.Rollback()
			return fmt.Errorf("patch %T for %s failed: %w", p.patch, version, err)
		}
	}
	if err := r.writeVersion(tx, version); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Runner) bump(ctx context.Context, version string) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := r.writeVersion(tx, version); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
