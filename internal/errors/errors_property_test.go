//go:build property

package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBundleErrorProperties validates matching and formatting properties
func TestBundleErrorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: wrapping never hides the sentinel of a bundle error
	properties.Property("sentinels survive wrapping", prop.ForAll(
		func(id string, depth int) bool {
			var err error = MissingRegistryEntry(id)
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}
			return IsMissingRegistryEntry(err) && !IsUnreadableSource(err) && !IsIDCollision(err)
		},
		gen.RegexMatch(`^[a-z]{1,8}(/[a-z]{1,8})?\.js$`),
		gen.IntRange(0, 5),
	))

	// Property: the message always names the code, module and file
	properties.Property("messages carry identifying fields", prop.ForAll(
		func(id, path string) bool {
			msg := IDCollision(id, "/existing/"+path, "/incoming/"+path).Error()
			return strings.HasPrefix(msg, "["+ErrCodeIDCollision+"]") &&
				strings.Contains(msg, "module:"+id) &&
				strings.Contains(msg, "/incoming/"+path)
		},
		gen.RegexMatch(`^[a-z]{1,8}\.js$`),
		gen.RegexMatch(`^[a-z]{1,8}\.js$`),
	))

	// Property: the original cause stays reachable through the chain
	properties.Property("causes are reachable", prop.ForAll(
		func(path string) bool {
			err := fmt.Errorf("walking: %w", UnreadableSource(path, os.ErrNotExist))
			return errors.Is(err, os.ErrNotExist) && errors.Is(err, ErrUnreadableSource)
		},
		gen.RegexMatch(`^/[a-z]{1,8}/[a-z]{1,8}\.js$`),
	))

	properties.TestingRun(t)
}
