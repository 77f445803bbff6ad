package build

import (
	"fmt"
	"io"
	"sort"
	"text/template"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/registry"
)

// RuntimeVersion is the resolver template used when none is requested.
const RuntimeVersion = "1"

// runtimeV1 defines the resolver that instantiates registry entries on
// first use. A module record is cached before its function runs so that a
// cyclic reference receives the partially populated exports.
const runtimeV1 = `const registryLocations = {
{{range .}}'{{js .ID}}': ['{{js .FileName}}', '{{js .DirName}}'],
{{end}}};
function require(id) {
  if (Object.prototype.hasOwnProperty.call(registryCache, id)) {
    return registryCache[id].exports;
  }
  if (!Object.prototype.hasOwnProperty.call(registry, id)) {
    throw new Error("Cannot find module '" + id + "'");
  }
  const module = { id: id, exports: {} };
  registryCache[id] = module;
  const location = registryLocations[id];
  registry[id].call(module.exports, module.exports, require, module, location[0], location[1]);
  return module.exports;
}
`

var runtimeTemplates = map[string]string{
	"1": runtimeV1,
}

// Runtime renders one version of the resolver text.
type Runtime struct {
	version string
	tmpl    *template.Template
}

// LookupRuntime returns the resolver for version. An empty version selects
// RuntimeVersion.
func LookupRuntime(version string) (*Runtime, error) {
	if version == "" {
		version = RuntimeVersion
	}

	text, ok := runtimeTemplates[version]
	if !ok {
		return nil, bundleerrors.NewConfigError(
			bundleerrors.ErrCodeUnknownRuntime,
			fmt.Sprintf("unknown runtime version %q", version),
		).WithContext("available", RuntimeVersions())
	}

	tmpl, err := template.New("runtime-v" + version).Parse(text)
	if err != nil {
		return nil, bundleerrors.NewInternalError(bundleerrors.ErrCodeInternal, "runtime template does not parse", err)
	}

	return &Runtime{version: version, tmpl: tmpl}, nil
}

// RuntimeVersions lists the known runtime versions.
func RuntimeVersions() []string {
	versions := make([]string, 0, len(runtimeTemplates))
	for v := range runtimeTemplates {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Version returns the runtime version.
func (r *Runtime) Version() string {
	return r.version
}

// Render writes the resolver text for nodes.
func (r *Runtime) Render(w io.Writer, nodes []*registry.Node) error {
	return r.tmpl.Execute(w, nodes)
}
