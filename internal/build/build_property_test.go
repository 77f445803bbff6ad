//go:build property
// +build property

package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const graphSize = 5

// writeGraph writes modules m0.js..m4.js where module i references the
// modules listed in edges[i]. It returns the entry path.
func writeGraph(dir string, edges [][]int) (string, error) {
	for i, deps := range edges {
		var b strings.Builder
		fmt.Fprintf(&b, "track(\"m%d\");\n", i)
		for _, j := range deps {
			fmt.Fprintf(&b, "require(\"./m%d.js\");\n", j)
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("m%d.js", i)), []byte(b.String()), 0644); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "m0.js"), nil
}

func reachable(edges [][]int) map[int]bool {
	seen := map[int]bool{0: true}
	queue := []int{0}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range edges[n] {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	return seen
}

// TestBundleProperties tests invariant properties of bundling random graphs
func TestBundleProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	edgesGen := gen.SliceOfN(graphSize, gen.SliceOfN(3, gen.IntRange(0, graphSize-1)))

	// Property 1: every reachable file is registered exactly once and every
	// registered node is finalised
	properties.Property("single registration", prop.ForAll(
		func(edges [][]int) bool {
			entry, err := writeGraph(t.TempDir(), edges)
			if err != nil {
				return false
			}
			result, err := mustBundler(t, Options{}).Bundle(context.Background(), entry)
			if err != nil {
				return false
			}
			if result.Registry.Count() != len(reachable(edges)) {
				return false
			}
			for _, node := range result.Registry.Nodes() {
				if !node.Finalized() {
					return false
				}
			}
			return true
		},
		edgesGen,
	))

	// Property 2: running the bundle evaluates every reachable module once
	properties.Property("single evaluation", prop.ForAll(
		func(edges [][]int) bool {
			entry, err := writeGraph(t.TempDir(), edges)
			if err != nil {
				return false
			}
			out, err := Bundle(context.Background(), entry)
			if err != nil {
				return false
			}

			vm := goja.New()
			counts := make(map[string]int)
			if err := vm.Set("track", func(name string) { counts[name]++ }); err != nil {
				return false
			}
			if _, err := vm.RunString(out); err != nil {
				return false
			}

			want := reachable(edges)
			if len(counts) != len(want) {
				return false
			}
			for i := range want {
				if counts[fmt.Sprintf("m%d", i)] != 1 {
					return false
				}
			}
			return true
		},
		edgesGen,
	))

	// Property 3: building the same graph twice yields identical output
	properties.Property("determinism", prop.ForAll(
		func(edges [][]int) bool {
			entry, err := writeGraph(t.TempDir(), edges)
			if err != nil {
				return false
			}
			first, err := Bundle(context.Background(), entry)
			if err != nil {
				return false
			}
			second, err := Bundle(context.Background(), entry)
			return err == nil && first == second
		},
		edgesGen,
	))

	properties.TestingRun(t)
}
