package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryCoversAllLanguages(t *testing.T) {
	r := DefaultRegistry()
	for _, lang := range []string{
		"rust", "typescript", "javascript", "solidity",
		"documentation", "yaml", "terraform",
	} {
		p, ok := r.Get(lang)
		require.True(t, ok, "missing parser for %s", lang)
		assert.Equal(t, lang, p.Language())
	}
	assert.Len(t, r.Languages(), 7)
}

func TestRegistryUnknownLanguage(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("cobol")
	assert.False(t, ok)
}

func TestRegistryReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(NewYAMLParser())
	r.Register(&YAMLParser{RecurseOneLevel: true})

	p, ok := r.Get("yaml")
	require.True(t, ok)
	assert.True(t, p.(*YAMLParser).RecurseOneLevel)
}
