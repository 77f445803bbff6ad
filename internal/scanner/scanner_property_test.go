//go:build property
// +build property

package scanner

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestScannerProperties tests invariant properties of the reference scanner
func TestScannerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property 1: results do not depend on the chunk size
	properties.Property("chunk size independence", prop.ForAll(
		func(names []string, filler string, chunkSize int) bool {
			source := buildSource(names, filler)

			whole, err := NewReferenceScanner().Scan(context.Background(), strings.NewReader(source), stripDotSlash)
			if err != nil {
				return false
			}
			chunked, err := NewReferenceScanner(WithChunkSize(chunkSize)).
				Scan(context.Background(), strings.NewReader(source), stripDotSlash)
			if err != nil {
				return false
			}

			if whole.Content != chunked.Content || len(whole.References) != len(chunked.References) {
				return false
			}
			for i := range whole.References {
				if whole.References[i] != chunked.References[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.RegexMatch(`^[a-z]{1,8}$`)),
		gen.RegexMatch(`^[a-z ;=\n]{0,40}$`),
		gen.IntRange(MinChunkSize, 128),
	))

	// Property 2: every well-formed reference is found, in order, and its
	// literal is replaced by the rewrite result
	properties.Property("rewrite correctness", prop.ForAll(
		func(names []string) bool {
			source := buildSource(names, "\n")

			result, err := NewReferenceScanner(WithChunkSize(MinChunkSize)).
				Scan(context.Background(), strings.NewReader(source), stripDotSlash)
			if err != nil || len(result.References) != len(names) {
				return false
			}

			for i, name := range names {
				ref := result.References[i]
				if ref.Target != "./"+name+".js" || ref.ID != name+".js" {
					return false
				}
			}
			return !strings.Contains(result.Content, `require("./`)
		},
		gen.SliceOfN(8, gen.RegexMatch(`^[a-z]{1,8}$`)),
	))

	properties.TestingRun(t)
}

func buildSource(names []string, filler string) string {
	var b strings.Builder
	for i, name := range names {
		fmt.Fprintf(&b, "const m%d = require(\"./%s.js\");%s", i, name, filler)
	}
	return b.String()
}
