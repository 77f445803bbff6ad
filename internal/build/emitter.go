package build

import (
	"bufio"
	"context"
	"io"
	"strings"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/registry"
)

// moduleWrapper opens the function that wraps every module body.
const moduleWrapper = "function (exports, require, module, __filename, __dirname) {"

// Emitter renders a finished registry as a single script.
type Emitter struct {
	runtime *Runtime
	logger  logging.Logger
}

// NewEmitter creates an emitter for the given runtime version.
func NewEmitter(runtimeVersion string, logger logging.Logger) (*Emitter, error) {
	rt, err := LookupRuntime(runtimeVersion)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Emitter{runtime: rt, logger: logger.WithComponent("emitter")}, nil
}

// RuntimeVersion returns the version of the resolver the emitter writes.
func (e *Emitter) RuntimeVersion() string {
	return e.runtime.Version()
}

// Emit writes the bundle for reg to w. Modules appear in registration
// order and the script ends with the call that instantiates entryID.
func (e *Emitter) Emit(w io.Writer, reg *registry.Registry, entryID string) error {
	if !reg.Has(entryID) {
		return bundleerrors.MissingRegistryEntry(entryID)
	}

	nodes := reg.Nodes()
	bw := bufio.NewWriter(w)

	bw.WriteString("registryCache = {}\n")
	bw.WriteString("const registry = {\n")
	for _, node := range nodes {
		bw.WriteString(quoteID(node.ID))
		bw.WriteString(": ")
		bw.WriteString(moduleWrapper)
		bw.WriteString(node.SourceContent)
		bw.WriteString("},\n")
	}
	bw.WriteString("};\n")

	if err := e.runtime.Render(bw, nodes); err != nil {
		return bundleerrors.NewInternalError(bundleerrors.ErrCodeInternal, "cannot render runtime", err)
	}

	bw.WriteString("require(")
	bw.WriteString(quoteID(entryID))
	bw.WriteString(")")

	if err := bw.Flush(); err != nil {
		return bundleerrors.NewIOError(bundleerrors.ErrCodeWriteFailed, "cannot write bundle", err)
	}

	e.logger.Debug(context.Background(), "Emitted bundle", "modules", len(nodes), "entry", entryID)
	return nil
}

// Render returns the bundle for reg as a string.
func (e *Emitter) Render(reg *registry.Registry, entryID string) (string, error) {
	var b strings.Builder
	if err := e.Emit(&b, reg, entryID); err != nil {
		return "", err
	}
	return b.String(), nil
}

var idQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\u2028", `\u2028`, "\u2029", `\u2029`)

// quoteID returns id as a single-quoted JavaScript string literal.
func quoteID(id string) string {
	return "'" + idQuoter.Replace(id) + "'"
}
