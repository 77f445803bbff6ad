// Package types provides common type definitions shared by the scanner,
// the registry and the build pipeline.
// This package contains shared types to avoid circular dependencies between packages.
package types

// Reference is one occurrence of a require("<target>") expression found
// while scanning a source file.
type Reference struct {
	// Target is the literal argument exactly as written in the source
	Target string `json:"target" yaml:"target"`
	// ID is the registry id the literal was rewritten to
	ID string `json:"id" yaml:"id"`
	// Start is the byte offset of the literal in the original file
	Start int64 `json:"start" yaml:"start"`
	// End is the byte offset just past the literal in the original file
	End int64 `json:"end" yaml:"end"`
}

// Dependency is a resolved reference waiting to be walked.
type Dependency struct {
	// ID is the registry id of the dependency
	ID string `json:"id" yaml:"id"`
	// AbsolutePath is the cleaned absolute path of the dependency file
	AbsolutePath string `json:"path" yaml:"path"`
}

// TreeNode is one visit in the dependency tree produced by a walk. A file
// that is reached more than once appears once per visit.
type TreeNode struct {
	ID       string      `json:"id" yaml:"id"`
	Path     string      `json:"path" yaml:"path"`
	Skipped  bool        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Children []*TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Count returns the number of visited (not skipped) nodes in the tree.
func (n *TreeNode) Count() int {
	if n == nil || n.Skipped {
		return 0
	}
	total := 1
	for _, child := range n.Children {
		total += child.Count()
	}
	return total
}
