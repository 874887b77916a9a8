package manifest

import (
	"errors"
	"sort"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse decodes stack manifest YAML.
// An empty document yields an empty Manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		var pErr *ParseError
		if errors.As(err, &pErr) {
			return nil, pErr
		}
		return nil, NewParseError("", err.Error(), ErrInvalidManifest)
	}
	return &m, nil
}

// ExternalNetworks returns the networks marked external, sorted by key.
// The effective name is the `name` override when set, else the mapping key.
func ExternalNetworks(m *Manifest) []NetworkRef {
	var refs []NetworkRef
	for _, key := range sortedKeys(m.Networks) {
		network := m.Networks[key]
		if !network.External.Enabled {
			continue
		}

		name := key
		switch {
		case network.Name != "":
			name = network.Name
		case network.External.Name != "":
			name = network.External.Name
		}

		refs = append(refs, NetworkRef{Key: key, Name: name})
	}
	return refs
}

// FileRefs returns the file-backed configs followed by the file-backed
// secrets, each sorted by key. Entries without a file are left out.
func FileRefs(m *Manifest) []FileRef {
	var refs []FileRef
	refs = appendFileRefs(refs, SectionConfigs, m.Configs)
	refs = appendFileRefs(refs, SectionSecrets, m.Secrets)
	return refs
}

func appendFileRefs(refs []FileRef, section Section, objects map[string]FileObject) []FileRef {
	for _, key := range sortedKeys(objects) {
		file := objects[key].File
		if file == "" {
			continue
		}
		refs = append(refs, FileRef{Section: section, Key: key, File: file})
	}
	return refs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
