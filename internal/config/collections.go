package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// CollectionMap routes language tags (and the optional service and concern
// groupings) to full collection names in the vector store.
type CollectionMap struct {
	// Prefix is prepended as "{prefix}_{suffix}" when non-empty.
	Prefix string `yaml:"collection_prefix"`

	// LanguageCollections maps language tag to collection suffix.
	LanguageCollections map[string]string `yaml:"language_collections"`

	// ServiceCollections maps repository ids to service collection suffixes.
	ServiceCollections map[string]string `yaml:"service_collections"`

	// ConcernCollections maps business domains to concern collection suffixes.
	ConcernCollections map[string]string `yaml:"concern_collections"`

	// Aliases maps alternate tags to an existing suffix.
	Aliases map[string]string `yaml:"aliases"`

	// DefaultCollection receives chunks with no language mapping, when set.
	DefaultCollection string `yaml:"default_collection"`
}

// DefaultCollectionMap mirrors the production collection layout: one
// collection per language, with the JavaScript family sharing the
// TypeScript collection and Helm sharing YAML.
func DefaultCollectionMap() *CollectionMap {
	return &CollectionMap{
		LanguageCollections: map[string]string{
			LangRust:          "rust",
			LangTypeScript:    "typescript",
			LangSolidity:      "solidity",
			LangDocumentation: "documentation",
			LangYAML:          "yaml",
			LangTerraform:     "terraform",
		},
		Aliases: map[string]string{
			LangJavaScript: "typescript",
			"helm":         "yaml",
		},
		ConcernCollections: map[string]string{
			"auth":    "security",
			"kyc":     "security",
			"finance": "payments",
			"trading": "payments",
		},
		DefaultCollection: "mixed",
	}
}

// LoadCollectionMap reads a collections config YAML file.
func LoadCollectionMap(path string) (*CollectionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read collections config %s", path), err)
	}
	var m CollectionMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, ingerr.ConfigError(fmt.Sprintf("malformed collections config %s", path), err)
	}
	if len(m.LanguageCollections) == 0 {
		return nil, ingerr.ConfigError(fmt.Sprintf("collections config %s defines no language_collections", path), nil)
	}
	return &m, nil
}

// FullName expands a suffix into a full collection name.
func (m *CollectionMap) FullName(suffix string) string {
	if m.Prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s_%s", m.Prefix, suffix)
}

// ForLanguage resolves a language tag to a full collection name, following
// aliases. The second return is false when the tag has no mapping and no
// default collection exists.
func (m *CollectionMap) ForLanguage(lang string) (string, bool) {
	if suffix, ok := m.LanguageCollections[lang]; ok {
		return m.FullName(suffix), true
	}
	if target, ok := m.Aliases[lang]; ok {
		if suffix, ok := m.LanguageCollections[target]; ok {
			return m.FullName(suffix), true
		}
		return m.FullName(target), true
	}
	if m.DefaultCollection != "" {
		return m.FullName(m.DefaultCollection), true
	}
	return "", false
}

// ForService resolves a repository id to its service collection, if any.
func (m *CollectionMap) ForService(repoID string) (string, bool) {
	suffix, ok := m.ServiceCollections[repoID]
	if !ok {
		return "", false
	}
	return m.FullName(suffix), true
}

// ForConcern resolves a business domain to its concern collection, if any.
func (m *CollectionMap) ForConcern(domain string) (string, bool) {
	suffix, ok := m.ConcernCollections[domain]
	if !ok {
		return "", false
	}
	return m.FullName(suffix), true
}

// AllCollections returns the deduplicated, sorted set of full collection
// names this map can route to. Used to ensure collections up front.
func (m *CollectionMap) AllCollections() []string {
	seen := map[string]struct{}{}
	for _, suffix := range m.LanguageCollections {
		seen[m.FullName(suffix)] = struct{}{}
	}
	for _, suffix := range m.ServiceCollections {
		seen[m.FullName(suffix)] = struct{}{}
	}
	for _, suffix := range m.ConcernCollections {
		seen[m.FullName(suffix)] = struct{}{}
	}
	if m.DefaultCollection != "" {
		seen[m.FullName(m.DefaultCollection)] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
