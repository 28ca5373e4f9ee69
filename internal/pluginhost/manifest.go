package pluginhost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nymea-go/thingd/pkg/ids"
)

// Manifest describes a plugin binary and its requirements, loaded from a
// plugin.json file alongside the binary. Generalizes
// internal/engine/registry.Manifest from one engine type to a plugin that
// may publish several ThingClasses.
type Manifest struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	VendorName    string   `json:"vendor_name"`
	Version       string   `json:"version"`
	BinaryPath    string   `json:"binary_path,omitempty"`
	MinAPIVersion string   `json:"min_api_version"`
	Checksum      string   `json:"checksum,omitempty"`
	Signature     string   `json:"signature,omitempty"`
	ThingClasses  []string `json:"thing_classes,omitempty"`

	dir string
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pluginhost: parse manifest: %w", err)
	}
	m.dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("pluginhost: invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks that every required field is present.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if m.MinAPIVersion == "" {
		return fmt.Errorf("min_api_version is required")
	}
	if m.BinaryPath == "" {
		return fmt.Errorf("binary_path is required")
	}
	return nil
}

// BinaryAbsPath resolves the plugin binary path relative to the
// manifest's directory, unless it is already absolute.
func (m *Manifest) BinaryAbsPath() string {
	if filepath.IsAbs(m.BinaryPath) {
		return m.BinaryPath
	}
	return filepath.Join(m.dir, m.BinaryPath)
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string { return m.dir }

// PluginID derives a stable PluginID by hashing the manifest's textual
// id — plugin manifests declare a human-chosen string id (reverse-DNS
// style), while internally every plugin is addressed by ids.PluginID.
func (m *Manifest) PluginID() ids.PluginID {
	return ids.PluginIDFromName(m.ID)
}

// DefaultManifestFilename is the conventional manifest filename searched
// for in each configured plugin search path.
const DefaultManifestFilename = "plugin.json"

// DiscoverManifests scans every directory in searchPaths for immediate
// subdirectories containing a plugin.json, returning every manifest
// found. Malformed manifests are skipped, not fatal — one broken plugin
// directory should not prevent the rest from loading.
func DiscoverManifests(searchPaths []string) ([]*Manifest, []error) {
	var manifests []*Manifest
	var errs []error

	for _, root := range searchPaths {
		entries, err := os.ReadDir(root)
		if err != nil {
			errs = append(errs, fmt.Errorf("pluginhost: scan %s: %w", root, err))
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name(), DefaultManifestFilename)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			m, err := LoadManifest(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			manifests = append(manifests, m)
		}
	}

	return manifests, errs
}
