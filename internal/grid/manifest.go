// Parses column manifest YAML files.

package grid

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk column configuration of a deployment.
type Manifest struct {
	Version int     `json:"version" yaml:"version" jsonschema:"description=Manifest format version; must be 1"`
	Columns Columns `json:"columns" yaml:"columns" jsonschema:"description=Ordered column descriptors"`
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Version != 1 {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return m.Columns.Validate()
}

// ParseManifest reads and parses a column manifest from a file.
// The path is provided by the CLI user, so file inclusion is expected.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-specified manifest path
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifestBytes(data)
}

// ParseManifestBytes parses a column manifest from bytes.
func ParseManifestBytes(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// ManifestSchema returns the JSON schema of the manifest format, indented.
func ManifestSchema() ([]byte, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.Reflect(&Manifest{})
	return json.MarshalIndent(s, "", "  ")
}
