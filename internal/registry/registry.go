// Package registry holds the modules discovered during one bundle build.
//
// Nodes are keyed by registry id, the slash-separated path of the file
// relative to the bundle's base directory. Insertion order is preserved so
// that emitted bundles are deterministic, and a node is registered with
// empty content before its own file is scanned.
package registry

import (
	"path/filepath"
	"sync"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
)

// Node is one source file included in the bundle.
type Node struct {
	// ID is the stable registry key
	ID string `json:"id" yaml:"id"`
	// AbsolutePath is the cleaned absolute path of the file
	AbsolutePath string `json:"path" yaml:"path"`
	// FileName is the base name of the file
	FileName string `json:"file_name" yaml:"file_name"`
	// DirName is the absolute directory containing the file
	DirName string `json:"dir_name" yaml:"dir_name"`
	// SourceContent is the rewritten source, empty until finalised
	SourceContent string `json:"-" yaml:"-"`
	// Dependencies lists the ids referenced by the file in source order
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	finalized bool
}

// NewNode creates an unfinalised node for absPath.
func NewNode(id, absPath string) *Node {
	clean := filepath.Clean(absPath)
	return &Node{
		ID:           id,
		AbsolutePath: clean,
		FileName:     filepath.Base(clean),
		DirName:      filepath.Dir(clean),
	}
}

// Finalized reports whether the node's content has been stored.
func (n *Node) Finalized() bool {
	return n.finalized
}

// Registry maps registry ids to nodes for one build.
type Registry struct {
	nodes map[string]*Node
	order []string
	mutex sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*Node),
		order: make([]string, 0),
	}
}

// Register adds a placeholder node for id unless one exists. It returns the
// node for id and whether it was created. Registering an existing id with a
// different absolute path fails with an id collision instead of replacing
// the node.
func (r *Registry) Register(id, absPath string) (*Node, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	clean := filepath.Clean(absPath)
	if existing, ok := r.nodes[id]; ok {
		if existing.AbsolutePath != clean {
			return nil, false, bundleerrors.IDCollision(id, existing.AbsolutePath, clean)
		}
		return existing, false, nil
	}

	node := NewNode(id, clean)
	r.nodes[id] = node
	r.order = append(r.order, id)

	return node, true, nil
}

// Finalize stores the rewritten content and dependency ids on the node for
// id. Content is written once; finalising an already finalised node keeps
// the first content. A missing id is a MissingRegistryEntry error.
func (r *Registry) Finalize(id, content string, dependencies []string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return bundleerrors.MissingRegistryEntry(id)
	}
	if node.finalized {
		return nil
	}

	node.SourceContent = content
	node.Dependencies = append([]string(nil), dependencies...)
	node.finalized = true

	return nil
}

// Get retrieves a node by id
func (r *Registry) Get(id string) (*Node, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	node, ok := r.nodes[id]
	return node, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// IDs returns all ids in insertion order.
func (r *Registry) IDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Nodes returns all nodes in insertion order.
func (r *Registry) Nodes() []*Node {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	nodes := make([]*Node, 0, len(r.order))
	for _, id := range r.order {
		nodes = append(nodes, r.nodes[id])
	}
	return nodes
}

// Count returns the number of registered nodes
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.nodes)
}
