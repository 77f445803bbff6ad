package build

import (
	"context"
	"path/filepath"
	"sort"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/registry"
	"github.com/conneroisu/cjsbundle/internal/scanner"
	"github.com/conneroisu/cjsbundle/internal/types"
	"golang.org/x/text/unicode/norm"
)

// VisitedSet maps the absolute path of a referencing file to the ids it
// has already descended into.
type VisitedSet map[string]map[string]bool

// NewVisitedSet creates an empty visited set.
func NewVisitedSet() VisitedSet {
	return make(VisitedSet)
}

// Add marks id as visited from parent. It reports false when the pair was
// already present.
func (v VisitedSet) Add(parent, id string) bool {
	ids, ok := v[parent]
	if !ok {
		ids = make(map[string]bool)
		v[parent] = ids
	}
	if ids[id] {
		return false
	}
	ids[id] = true
	return true
}

// Contains reports whether id was visited from parent.
func (v VisitedSet) Contains(parent, id string) bool {
	return v[parent][id]
}

// IDs returns the ids visited from parent, sorted.
func (v VisitedSet) IDs(parent string) []string {
	ids := make([]string, 0, len(v[parent]))
	for id := range v[parent] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WalkReport describes one walk.
type WalkReport struct {
	// Tree is the visiting order as a tree rooted at the entry
	Tree *types.TreeNode
	// Files counts file scans, revisits through other parents included
	Files int
	// References counts the references found across all scans
	References int
	// Skipped counts dependencies skipped by the visited set
	Skipped int
}

// Walker discovers the transitive references of an entry file and fills a
// registry with their rewritten sources.
type Walker struct {
	scanner *scanner.ReferenceScanner
	logger  logging.Logger
}

// NewWalker creates a walker that reads files through s.
func NewWalker(s *scanner.ReferenceScanner, logger logging.Logger) *Walker {
	if s == nil {
		s = scanner.NewReferenceScanner()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Walker{
		scanner: s,
		logger:  logger.WithComponent("walker"),
	}
}

// Walk scans entryAbsolutePath and everything it references, registering
// each discovered file in reg and finalising every scanned node with its
// rewritten content. The entry must already be registered under entryID.
func (w *Walker) Walk(ctx context.Context, baseDir, entryAbsolutePath, entryID string, visited VisitedSet, reg *registry.Registry) error {
	_, err := w.WalkTree(ctx, baseDir, entryAbsolutePath, entryID, visited, reg)
	return err
}

// frame is one file on the walk stack together with the position of the
// next dependency to descend into.
type frame struct {
	abs  string
	deps []types.Dependency
	next int
	node *types.TreeNode
}

// WalkTree is Walk that also returns the visiting tree and counters. The
// report is partial when an error is returned.
func (w *Walker) WalkTree(ctx context.Context, baseDir, entryAbsolutePath, entryID string, visited VisitedSet, reg *registry.Registry) (*WalkReport, error) {
	if visited == nil {
		visited = NewVisitedSet()
	}
	res := resolver{
		baseDir:  filepath.Clean(baseDir),
		entryAbs: filepath.Clean(entryAbsolutePath),
		entryID:  entryID,
	}
	report := &WalkReport{}

	root, err := w.enter(ctx, res, res.entryAbs, entryID, reg, report)
	if err != nil {
		return report, err
	}
	report.Tree = root.node

	stack := []*frame{root}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.deps) {
			stack = stack[:len(stack)-1]
			continue
		}
		dep := top.deps[top.next]
		top.next++

		w.logger.Debug(ctx, "visited dependencies",
			"file", top.abs,
			"dependency", dep.ID,
			"visited", visited.IDs(top.abs),
		)

		if !visited.Add(top.abs, dep.ID) {
			report.Skipped++
			top.node.Children = append(top.node.Children, &types.TreeNode{
				ID:      dep.ID,
				Path:    dep.AbsolutePath,
				Skipped: true,
			})
			continue
		}

		child, err := w.enter(ctx, res, dep.AbsolutePath, dep.ID, reg, report)
		if err != nil {
			return report, err
		}
		top.node.Children = append(top.node.Children, child.node)
		stack = append(stack, child)
	}

	return report, nil
}

// enter scans one file, registers its dependencies and finalises its node.
func (w *Walker) enter(ctx context.Context, res resolver, abs, id string, reg *registry.Registry, report *WalkReport) (*frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, bundleerrors.BuildCancelled(err).WithFile(abs)
	}

	dir := filepath.Dir(abs)
	result, err := w.scanner.ScanFile(ctx, scanner.FileRequest{
		Path:  abs,
		Scope: res.scope(),
		Rewrite: func(target string) string {
			return res.id(res.absolute(dir, target))
		},
	})
	if err != nil {
		return nil, err
	}
	report.Files++
	report.References += len(result.References)

	deps := make([]types.Dependency, 0, len(result.References))
	ids := make([]string, 0, len(result.References))
	for _, ref := range result.References {
		depAbs := res.absolute(dir, ref.Target)
		if _, _, err := reg.Register(ref.ID, depAbs); err != nil {
			return nil, err
		}
		deps = append(deps, types.Dependency{ID: ref.ID, AbsolutePath: depAbs})
		ids = append(ids, ref.ID)
	}

	if err := reg.Finalize(id, result.Content, ids); err != nil {
		return nil, err
	}

	return &frame{
		abs:  abs,
		deps: deps,
		node: &types.TreeNode{ID: id, Path: abs},
	}, nil
}

// resolver turns reference targets into absolute paths and registry ids.
type resolver struct {
	baseDir  string
	entryAbs string
	entryID  string
}

func (r resolver) absolute(fromDir, target string) string {
	return filepath.Clean(filepath.Join(fromDir, filepath.FromSlash(target)))
}

// id returns the registry id for abs. The entry file keeps its own id so
// that references back to it reach the bootstrapped node.
func (r resolver) id(abs string) string {
	if abs == r.entryAbs {
		return r.entryID
	}
	rel, err := filepath.Rel(r.baseDir, abs)
	if err != nil {
		rel = abs
	}
	return NormalizeID(rel)
}

// scope identifies the inputs of id besides the referencing file.
func (r resolver) scope() string {
	return r.baseDir + "\x00" + r.entryAbs + "\x00" + r.entryID
}

// NormalizeID converts a relative path into registry id form: slash
// separated and NFC normalised.
func NormalizeID(rel string) string {
	return norm.NFC.String(filepath.ToSlash(rel))
}
