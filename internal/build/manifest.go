package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"gopkg.in/yaml.v3"
)

// Manifest formats.
const (
	ManifestJSON = "json"
	ManifestYAML = "yaml"
	ManifestTOML = "toml"
)

// Manifest describes the modules that went into a bundle.
type Manifest struct {
	Entry          string           `json:"entry" yaml:"entry" toml:"entry"`
	EntryID        string           `json:"entry_id" yaml:"entry_id" toml:"entry_id"`
	BaseDir        string           `json:"base_dir" yaml:"base_dir" toml:"base_dir"`
	RuntimeVersion string           `json:"runtime_version" yaml:"runtime_version" toml:"runtime_version"`
	BundleHash     string           `json:"bundle_sha256" yaml:"bundle_sha256" toml:"bundle_sha256"`
	BundleSize     int              `json:"bundle_size" yaml:"bundle_size" toml:"bundle_size"`
	Modules        []ManifestModule `json:"modules" yaml:"modules" toml:"modules"`
	Cycles         [][]string       `json:"cycles,omitempty" yaml:"cycles,omitempty" toml:"cycles,omitempty"`
}

// ManifestModule is one registry node in a manifest.
type ManifestModule struct {
	ID           string   `json:"id" yaml:"id" toml:"id"`
	Path         string   `json:"path" yaml:"path" toml:"path"`
	Size         int      `json:"size" yaml:"size" toml:"size"`
	Hash         string   `json:"sha256" yaml:"sha256" toml:"sha256"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
}

// NewManifest summarises result. Module sizes and hashes are taken over
// the rewritten sources as they appear in the bundle.
func NewManifest(result *Result) *Manifest {
	nodes := result.Registry.Nodes()
	m := &Manifest{
		Entry:          result.EntryPath,
		EntryID:        result.EntryID,
		BaseDir:        result.BaseDir,
		RuntimeVersion: result.RuntimeVersion,
		BundleHash:     hashString(result.Output),
		BundleSize:     len(result.Output),
		Modules:        make([]ManifestModule, 0, len(nodes)),
		Cycles:         result.Cycles,
	}

	for _, node := range nodes {
		m.Modules = append(m.Modules, ManifestModule{
			ID:           node.ID,
			Path:         node.AbsolutePath,
			Size:         len(node.SourceContent),
			Hash:         hashString(node.SourceContent),
			Dependencies: node.Dependencies,
		})
	}

	return m
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ManifestFormat returns the manifest format implied by the extension of
// path.
func ManifestFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ManifestJSON, nil
	case ".yaml", ".yml":
		return ManifestYAML, nil
	case ".toml":
		return ManifestTOML, nil
	default:
		return "", bundleerrors.ErrInvalidPath(path, "manifest must end in .json, .yaml, .yml or .toml")
	}
}

// Encode writes the manifest to w in the given format.
func (m *Manifest) Encode(w io.Writer, format string) error {
	switch format {
	case ManifestJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case ManifestYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	case ManifestTOML:
		return toml.NewEncoder(w).Encode(m)
	default:
		return fmt.Errorf("unknown manifest format %q", format)
	}
}

// WriteFile writes the manifest to path in the format its extension
// names.
func (m *Manifest) WriteFile(path string) error {
	format, err := ManifestFormat(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return bundleerrors.NewIOError(bundleerrors.ErrCodeWriteFailed, "cannot create manifest", err).WithFile(path)
	}
	defer file.Close()

	if err := m.Encode(file, format); err != nil {
		return bundleerrors.NewIOError(bundleerrors.ErrCodeWriteFailed, "cannot write manifest", err).WithFile(path)
	}

	return file.Close()
}
